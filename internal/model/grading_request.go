package model

import "time"

type GradingRequestStatus string

const (
	GradingPending  GradingRequestStatus = "pending"
	GradingApproved GradingRequestStatus = "approved"
	GradingRejected GradingRequestStatus = "rejected"
)

// swagger:model GradingRequest
type GradingRequest struct {
	BaseModel

	AnswerID    uint                 `gorm:"index;type:bigint unsigned" json:"answerId"`
	RequestedAt time.Time            `json:"requestedAt"`
	Status      GradingRequestStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	// Reason 学生申请复核时的说明
	Reason string `gorm:"type:text" json:"reason,omitempty"`
	// Comment 教师裁决时的备注
	Comment    string     `gorm:"type:text" json:"comment,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

func (GradingRequest) TableName() string {
	return "grading_requests"
}

func (r *GradingRequest) Resolved() bool {
	return r.Status != GradingPending
}
