package model

import "time"

// swagger:model ExamAttempt
type ExamAttempt struct {
	BaseModel

	ExamID      uint       `gorm:"index;type:bigint unsigned" json:"examId"`
	UserID      uint       `gorm:"index;type:bigint unsigned" json:"userId"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	// Score 完成前为 null，完成后为各答案得分之和
	Score *int `json:"score"`
	// MaxScore 创建时冻结：当时所有题目分值之和，之后加题不影响
	MaxScore  int `json:"maxScore"`
	TimeSpent int `json:"timeSpent"` // Seconds
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

func (a *ExamAttempt) Completed() bool {
	return a.CompletedAt != nil
}

// Deadline 答题截止时间 = 开始时间 + 考试时长
func (a *ExamAttempt) Deadline(exam *Exam) time.Time {
	return a.StartedAt.Add(time.Duration(exam.Duration) * time.Minute)
}
