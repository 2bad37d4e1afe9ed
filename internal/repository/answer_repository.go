package repository

import (
	"exam_hub_backend/internal/model"

	"gorm.io/gorm"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

func (r *AnswerRepository) Create(a *model.Answer) error {
	return r.DB.Create(a).Error
}

func (r *AnswerRepository) Update(a *model.Answer) error {
	return r.DB.Save(a).Error
}

func (r *AnswerRepository) FindByID(id uint) (*model.Answer, error) {
	var a model.Answer
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AnswerRepository) FindByAttemptAndQuestion(attemptID, questionID uint) (*model.Answer, error) {
	var a model.Answer
	err := r.DB.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AnswerRepository) ListByAttempt(attemptID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}
