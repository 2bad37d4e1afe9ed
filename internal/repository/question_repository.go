package repository

import (
	"exam_hub_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *QuestionRepository) Update(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *QuestionRepository) Delete(q *model.Question) error {
	return r.DB.Delete(q).Error
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) ListByExam(examID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("exam_id = ?", examID).Order("sort_order ASC, id ASC").Find(&questions).Error
	return questions, err
}

// SumPoints 当前题目总分，用于冻结答卷的 maxScore
func (r *QuestionRepository) SumPoints(examID uint) (int, error) {
	var total int64
	err := r.DB.Model(&model.Question{}).Where("exam_id = ?", examID).
		Select("COALESCE(SUM(points), 0)").Scan(&total).Error
	return int(total), err
}
