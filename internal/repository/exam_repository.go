package repository

import (
	"exam_hub_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

func (r *ExamRepository) Delete(exam *model.Exam) error {
	return r.DB.Delete(exam).Error
}

func (r *ExamRepository) FindByID(id uint) (*model.Exam, error) {
	var e model.Exam
	if err := r.DB.First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ExamRepository) FindByShareCode(code string) (*model.Exam, error) {
	var e model.Exam
	if err := r.DB.Where("share_code = ?", code).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ExamRepository) ListByOwner(ownerID uint, page, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64
	q := r.DB.Model(&model.Exam{}).Where("user_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&exams).Error
	return exams, total, err
}

func (r *ExamRepository) ListActive(page, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64
	q := r.DB.Model(&model.Exam{}).Where("status = ?", model.ExamActive)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&exams).Error
	return exams, total, err
}
