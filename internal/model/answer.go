package model

// swagger:model Answer
type Answer struct {
	BaseModel

	AttemptID  uint `gorm:"uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"attemptId"`
	QuestionID uint `gorm:"uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"questionId"`
	// Answer 选择题为选项 id，判断题为 "true"/"false"，主观题为自由文本
	Answer string `gorm:"type:text" json:"answer"`
	// IsCorrect / Score 未判分（主观题待人工评分）时为 null
	IsCorrect      *bool `json:"isCorrect"`
	Score          *int  `json:"score"`
	ManuallyGraded bool  `gorm:"default:false" json:"manuallyGraded"`
}

func (Answer) TableName() string {
	return "answers"
}
