package service

import (
	"errors"
	"time"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/internal/util"
	"exam_hub_backend/pkg/logger"
	"exam_hub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GradingService struct {
	RequestRepo  *repository.GradingRequestRepository
	AnswerRepo   *repository.AnswerRepository
	AttemptRepo  *repository.AttemptRepository
	ExamRepo     *repository.ExamRepository
	QuestionRepo *repository.QuestionRepository
	DB           *gorm.DB
}

func NewGradingService(requestRepo *repository.GradingRequestRepository, answerRepo *repository.AnswerRepository, attemptRepo *repository.AttemptRepository, examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository, db *gorm.DB) *GradingService {
	return &GradingService{
		RequestRepo:  requestRepo,
		AnswerRepo:   answerRepo,
		AttemptRepo:  attemptRepo,
		ExamRepo:     examRepo,
		QuestionRepo: questionRepo,
		DB:           db,
	}
}

// RequestReview 学生对某个已判分答案发起复核
func (s *GradingService) RequestReview(answerID, requesterID uint, reason string) (*model.GradingRequest, error) {
	answer, err := s.AnswerRepo.FindByID(answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAnswerNotFound
		}
		return nil, err
	}

	attempt, err := s.AttemptRepo.FindByID(answer.AttemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != requesterID {
		return nil, util.ErrPermissionDenied
	}

	req := &model.GradingRequest{
		AnswerID:    answerID,
		RequestedAt: time.Now(),
		Status:      model.GradingPending,
		Reason:      reason,
	}
	if err := s.RequestRepo.Create(req); err != nil {
		return nil, err
	}
	return req, nil
}

type ResolveRequest struct {
	Decision model.GradingRequestStatus `json:"decision" binding:"required"`
	Comment  string                     `json:"comment"`
	Score    *int                       `json:"score"`
}

// Resolve 教师裁决复核请求。approved 且给了分数时：
// 覆盖答案得分（isCorrect = 分数 > 0，标记人工评分），
// 并在同一事务中把所属答卷总分重算为全部答案得分之和。
// rejected 只做标记，原分数不动。
func (s *GradingService) Resolve(requestID, resolverID uint, req ResolveRequest) (*model.GradingRequest, error) {
	if req.Decision != model.GradingApproved && req.Decision != model.GradingRejected {
		return nil, util.ErrInvalidDecision
	}

	request, err := s.RequestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrRequestNotFound
		}
		return nil, err
	}
	if request.Resolved() {
		return nil, util.ErrRequestResolved
	}

	answer, attempt, exam, err := s.resolveChain(request.AnswerID)
	if err != nil {
		return nil, err
	}
	if exam.UserID != resolverID {
		return nil, util.ErrPermissionDenied
	}

	if req.Decision == model.GradingApproved && req.Score != nil {
		question, err := s.QuestionRepo.FindByID(answer.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrQuestionNotFound
			}
			return nil, err
		}
		if *req.Score < 0 || *req.Score > question.Points {
			return nil, util.ErrScoreOutOfRange
		}
	}

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 条件更新：pending→resolved 只允许一次
		res := tx.Model(&model.GradingRequest{}).
			Where("id = ? AND status = ?", request.ID, model.GradingPending).
			Updates(map[string]interface{}{
				"status":      req.Decision,
				"comment":     req.Comment,
				"resolved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrRequestResolved
		}

		if req.Decision == model.GradingApproved && req.Score != nil {
			if err := overrideScore(tx, answer, attempt, *req.Score); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = req.Decision
	request.Comment = req.Comment
	request.ResolvedAt = &now

	monitoring.GradingRequestCounter.WithLabelValues(string(req.Decision)).Inc()
	logger.Log.Info("grading request resolved",
		zap.Uint("requestId", request.ID),
		zap.String("decision", string(req.Decision)),
		zap.Uint("resolverId", resolverID))
	return request, nil
}

// GradeAnswer 教师直接人工评分（主观题批改入口），复用同一覆写+重算路径
func (s *GradingService) GradeAnswer(answerID, teacherID uint, score int) (*model.Answer, error) {
	answer, attempt, exam, err := s.resolveChain(answerID)
	if err != nil {
		return nil, err
	}
	if exam.UserID != teacherID {
		return nil, util.ErrPermissionDenied
	}

	question, err := s.QuestionRepo.FindByID(answer.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if score < 0 || score > question.Points {
		return nil, util.ErrScoreOutOfRange
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		return overrideScore(tx, answer, attempt, score)
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// ListPending 教师名下所有考试的待处理复核请求
func (s *GradingService) ListPending(teacherID uint) ([]model.GradingRequest, error) {
	return s.RequestRepo.ListPendingByTeacher(teacherID)
}

// resolveChain answer → attempt → exam 逐级取出，任何一级缺失即 NotFound
func (s *GradingService) resolveChain(answerID uint) (*model.Answer, *model.ExamAttempt, *model.Exam, error) {
	answer, err := s.AnswerRepo.FindByID(answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, util.ErrAnswerNotFound
		}
		return nil, nil, nil, err
	}
	attempt, err := s.AttemptRepo.FindByID(answer.AttemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, util.ErrAttemptNotFound
		}
		return nil, nil, nil, err
	}
	exam, err := s.ExamRepo.FindByID(attempt.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, util.ErrExamNotFound
		}
		return nil, nil, nil, err
	}
	return answer, attempt, exam, nil
}

// overrideScore 在事务内覆写单题得分并重算答卷总分。
// 重算读取的是同事务内的全部答案，避免与并发裁决互相丢更新。
func overrideScore(tx *gorm.DB, answer *model.Answer, attempt *model.ExamAttempt, score int) error {
	isCorrect := score > 0
	answer.Score = &score
	answer.IsCorrect = &isCorrect
	answer.ManuallyGraded = true
	if err := tx.Save(answer).Error; err != nil {
		return err
	}

	// 未完成的答卷总分保持 null，完成时会统一汇总
	if !attempt.Completed() {
		return nil
	}

	var answers []model.Answer
	if err := tx.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
		return err
	}
	total := sumScores(answers)
	attempt.Score = &total
	return tx.Model(&model.ExamAttempt{}).Where("id = ?", attempt.ID).Update("score", total).Error
}
