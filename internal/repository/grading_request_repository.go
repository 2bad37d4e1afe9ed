package repository

import (
	"exam_hub_backend/internal/model"

	"gorm.io/gorm"
)

type GradingRequestRepository struct {
	DB *gorm.DB
}

func NewGradingRequestRepository(db *gorm.DB) *GradingRequestRepository {
	return &GradingRequestRepository{DB: db}
}

func (r *GradingRequestRepository) Create(req *model.GradingRequest) error {
	return r.DB.Create(req).Error
}

func (r *GradingRequestRepository) Update(req *model.GradingRequest) error {
	return r.DB.Save(req).Error
}

func (r *GradingRequestRepository) FindByID(id uint) (*model.GradingRequest, error) {
	var req model.GradingRequest
	if err := r.DB.First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPendingByTeacher 教师可见的待处理复核请求：
// request → answer → attempt → exam 四表联查，按考试归属过滤。
func (r *GradingRequestRepository) ListPendingByTeacher(teacherID uint) ([]model.GradingRequest, error) {
	var reqs []model.GradingRequest
	err := r.DB.Model(&model.GradingRequest{}).
		Joins("JOIN answers ON answers.id = grading_requests.answer_id").
		Joins("JOIN exam_attempts ON exam_attempts.id = answers.attempt_id").
		Joins("JOIN exams ON exams.id = exam_attempts.exam_id").
		Where("grading_requests.status = ? AND exams.user_id = ?", model.GradingPending, teacherID).
		Order("grading_requests.requested_at ASC").
		Find(&reqs).Error
	return reqs, err
}
