package repository

import (
	"exam_hub_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(a *model.ExamAttempt) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) Update(a *model.ExamAttempt) error {
	return r.DB.Save(a).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.ExamAttempt, error) {
	var a model.ExamAttempt
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindInProgress 查找某学生在某考试下未完成的答卷（幂等开始的依据）
func (r *AttemptRepository) FindInProgress(examID, userID uint) (*model.ExamAttempt, error) {
	var a model.ExamAttempt
	err := r.DB.Where("exam_id = ? AND user_id = ? AND completed_at IS NULL", examID, userID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) ListByExam(examID uint) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Where("exam_id = ?", examID).Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByUser(userID uint) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Where("user_id = ?", userID).Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

// ListInProgress 所有未完成的答卷，供后台超时清扫使用
func (r *AttemptRepository) ListInProgress() ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Where("completed_at IS NULL").Find(&attempts).Error
	return attempts, err
}
