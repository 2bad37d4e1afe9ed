package service

import (
	"errors"
	"fmt"
	"time"

	"exam_hub_backend/internal/grading"
	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/internal/util"
	"exam_hub_backend/pkg/logger"
	"exam_hub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AttemptService struct {
	AttemptRepo  *repository.AttemptRepository
	AnswerRepo   *repository.AnswerRepository
	ExamRepo     *repository.ExamRepository
	QuestionRepo *repository.QuestionRepository
	DB           *gorm.DB

	startLocks  *keyLock // (examId, userId)
	answerLocks *keyLock // (attemptId, questionId)
}

func NewAttemptService(attemptRepo *repository.AttemptRepository, answerRepo *repository.AnswerRepository, examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository, db *gorm.DB) *AttemptService {
	return &AttemptService{
		AttemptRepo:  attemptRepo,
		AnswerRepo:   answerRepo,
		ExamRepo:     examRepo,
		QuestionRepo: questionRepo,
		DB:           db,
		startLocks:   newKeyLock(),
		answerLocks:  newKeyLock(),
	}
}

// StartAttempt 开始答卷。幂等：已有未完成答卷时原样返回。
// maxScore 在创建时冻结为当前题目总分，之后教师加题不影响已开始的答卷。
func (s *AttemptService) StartAttempt(examID, userID uint) (*model.ExamAttempt, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if exam.Status != model.ExamActive {
		return nil, util.ErrExamNotActive
	}

	key := fmt.Sprintf("%d:%d", examID, userID)
	s.startLocks.Lock(key)
	defer s.startLocks.Unlock(key)

	if existing, err := s.AttemptRepo.FindInProgress(examID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	maxScore, err := s.QuestionRepo.SumPoints(examID)
	if err != nil {
		return nil, err
	}

	attempt := &model.ExamAttempt{
		ExamID:    examID,
		UserID:    userID,
		StartedAt: time.Now(),
		MaxScore:  maxScore,
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}

	monitoring.AttemptCounter.WithLabelValues("started").Inc()
	logger.Log.Info("attempt started",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("examId", examID),
		zap.Uint("userId", userID),
		zap.Int("maxScore", maxScore))
	return attempt, nil
}

// SubmitAnswer 按 (attemptId, questionId) upsert 答案，客观题立即重新判分。
// 不更新答卷总分——总分只在完成时一次性汇总。
// 已被人工评分的答案不允许再次提交，防止覆盖教师给分。
func (s *AttemptService) SubmitAnswer(attemptID, questionID uint, answerText string, callerID uint) (*model.Answer, error) {
	attempt, err := s.ownAttempt(attemptID, callerID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed() {
		return nil, util.ErrAttemptCompleted
	}

	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if question.ExamID != attempt.ExamID {
		return nil, util.ErrQuestionNotFound
	}

	key := fmt.Sprintf("%d:%d", attemptID, questionID)
	s.answerLocks.Lock(key)
	defer s.answerLocks.Unlock(key)

	answer, err := s.AnswerRepo.FindByAttemptAndQuestion(attemptID, questionID)
	switch {
	case err == nil:
		if answer.ManuallyGraded {
			return nil, util.ErrAnswerLocked
		}
		answer.Answer = answerText
	case errors.Is(err, gorm.ErrRecordNotFound):
		answer = &model.Answer{
			AttemptID:  attemptID,
			QuestionID: questionID,
			Answer:     answerText,
		}
	default:
		return nil, err
	}

	// 对实际落库的文本重新判分，覆盖旧结果
	result := grading.Grade(question, answerText)
	result.Apply(answer)

	if answer.ID == 0 {
		err = s.AnswerRepo.Create(answer)
	} else {
		err = s.AnswerRepo.Update(answer)
	}
	if err != nil {
		return nil, err
	}

	if result.Graded() {
		outcome := "incorrect"
		if *answer.IsCorrect {
			outcome = "correct"
		}
		monitoring.AnswerGradeCounter.WithLabelValues(outcome).Inc()
	}
	return answer, nil
}

// CompleteAttempt 完成答卷：只许成功一次，第二次返回状态冲突。
// 总分 = 各答案得分之和（未判分按 0），耗时向下取整到秒。
func (s *AttemptService) CompleteAttempt(attemptID, callerID uint) (*model.ExamAttempt, error) {
	attempt, err := s.ownAttempt(attemptID, callerID)
	if err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var answers []model.Answer
		if err := tx.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
			return err
		}
		total := sumScores(answers)

		now := time.Now()
		timeSpent := int(now.Sub(attempt.StartedAt).Seconds())

		// 条件更新保证并发完成恰好一次生效
		res := tx.Model(&model.ExamAttempt{}).
			Where("id = ? AND completed_at IS NULL", attempt.ID).
			Updates(map[string]interface{}{
				"completed_at": now,
				"time_spent":   timeSpent,
				"score":        total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAttemptCompleted
		}

		attempt.CompletedAt = &now
		attempt.TimeSpent = timeSpent
		attempt.Score = &total
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptCounter.WithLabelValues("completed").Inc()
	logger.Log.Info("attempt completed",
		zap.Uint("attemptId", attempt.ID),
		zap.Intp("score", attempt.Score),
		zap.Int("maxScore", attempt.MaxScore),
		zap.Int("timeSpent", attempt.TimeSpent))
	return attempt, nil
}

// GetAttempt 考生本人或考试归属教师可见
func (s *AttemptService) GetAttempt(attemptID, callerID uint) (*model.ExamAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID == callerID {
		return attempt, nil
	}
	exam, err := s.ExamRepo.FindByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if exam.UserID != callerID {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

func (s *AttemptService) ListAnswers(attemptID, callerID uint) ([]model.Answer, error) {
	if _, err := s.GetAttempt(attemptID, callerID); err != nil {
		return nil, err
	}
	return s.AnswerRepo.ListByAttempt(attemptID)
}

func (s *AttemptService) ListMine(userID uint) ([]model.ExamAttempt, error) {
	return s.AttemptRepo.ListByUser(userID)
}

// ListByExam 教师查看某考试的全部答卷
func (s *AttemptService) ListByExam(examID, teacherID uint) ([]model.ExamAttempt, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if exam.UserID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return s.AttemptRepo.ListByExam(examID)
}

// CompleteExpired 后台清扫：把超过考试时长仍未完成的答卷强制完成。
// 与考生的手动提交竞争时，后完成的一方收到状态冲突并忽略。
func (s *AttemptService) CompleteExpired(now time.Time) int {
	attempts, err := s.AttemptRepo.ListInProgress()
	if err != nil {
		logger.Log.Error("list in-progress attempts failed", zap.Error(err))
		return 0
	}

	expired := 0
	for i := range attempts {
		a := &attempts[i]
		exam, err := s.ExamRepo.FindByID(a.ExamID)
		if err != nil {
			continue
		}
		if now.Before(a.Deadline(exam)) {
			continue
		}
		if _, err := s.CompleteAttempt(a.ID, a.UserID); err != nil {
			if !errors.Is(err, util.ErrAttemptCompleted) {
				logger.Log.Error("force-complete expired attempt failed",
					zap.Uint("attemptId", a.ID), zap.Error(err))
			}
			continue
		}
		monitoring.AttemptCounter.WithLabelValues("expired").Inc()
		expired++
	}
	return expired
}

func (s *AttemptService) ownAttempt(attemptID, callerID uint) (*model.ExamAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != callerID {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

func sumScores(answers []model.Answer) int {
	total := 0
	for _, a := range answers {
		if a.Score != nil {
			total += *a.Score
		}
	}
	return total
}
