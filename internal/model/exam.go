package model

type ExamStatus string

const (
	ExamDraft    ExamStatus = "draft"
	ExamActive   ExamStatus = "active"
	ExamArchived ExamStatus = "archived"
)

// swagger:model Exam
type Exam struct {
	BaseModel
	UserID        uint       `gorm:"index;type:bigint unsigned" json:"userId"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Subject       string     `gorm:"size:100" json:"subject"`
	Description   string     `gorm:"type:text" json:"description"`
	Duration      int        `gorm:"not null" json:"duration"` // Minutes
	Status        ExamStatus `gorm:"type:varchar(20);default:'draft'" json:"status"`
	ShareCode     string     `gorm:"size:6;uniqueIndex" json:"shareCode"`
	AttachmentURL string     `gorm:"size:255" json:"attachmentUrl,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// CanTransitionTo 状态机：draft→active，active⇄archived，不允许 draft→archived
func (e *Exam) CanTransitionTo(next ExamStatus) bool {
	switch e.Status {
	case ExamDraft:
		return next == ExamActive
	case ExamActive:
		return next == ExamArchived
	case ExamArchived:
		return next == ExamActive
	}
	return false
}
