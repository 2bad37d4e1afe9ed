package model

import "encoding/json"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	Essay          QuestionType = "essay"
)

// IsObjective 客观题（可自动判分）
func (t QuestionType) IsObjective() bool {
	return t == MultipleChoice || t == TrueFalse
}

// QuestionOption 选择题选项
type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// swagger:model Question
type Question struct {
	BaseModel
	ExamID uint         `gorm:"index;type:bigint unsigned" json:"examId"`
	Type   QuestionType `gorm:"size:20;not null" json:"type"`
	Text   string       `gorm:"type:text;not null" json:"text"`
	Points int          `gorm:"not null" json:"points"`
	Order  int          `gorm:"column:sort_order;default:0" json:"order"`
	// Options 仅选择题使用，JSON 数组 [{id, text}]
	Options json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	// CorrectAnswer 客观题答案：选择题为选项 id，判断题为字面量 "true"/"false"
	CorrectAnswer string `gorm:"type:text" json:"correctAnswer,omitempty"`
	// AcceptableAnswers 主观题参考答案（JSON 字符串数组），仅供人工评分参考
	AcceptableAnswers json.RawMessage `gorm:"type:json" json:"acceptableAnswers,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// Sanitize 返回去除答案信息的副本，发给考生
func (q Question) Sanitize() Question {
	q.CorrectAnswer = ""
	q.AcceptableAnswers = nil
	return q
}
