package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"time"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/internal/util"
	"exam_hub_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shareCodeCachePrefix = "exam:code:"
	shareCodeCacheTTL    = 5 * time.Minute
	shareCodeMaxRetries  = 5
)

type ExamService struct {
	ExamRepo     *repository.ExamRepository
	QuestionRepo *repository.QuestionRepository
	Storage      *StorageService
	Redis        *redis.Client
}

func NewExamService(examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository, storage *StorageService, rdb *redis.Client) *ExamService {
	return &ExamService{
		ExamRepo:     examRepo,
		QuestionRepo: questionRepo,
		Storage:      storage,
		Redis:        rdb,
	}
}

type ExamCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Duration    int    `json:"duration" binding:"required"`
}

type ExamUpdateRequest struct {
	Title       *string `json:"title"`
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
	Duration    *int    `json:"duration"`
}

func (s *ExamService) CreateExam(ownerID uint, req ExamCreateRequest) (*model.Exam, error) {
	if req.Duration <= 0 {
		return nil, util.ErrInvalidDuration
	}

	exam := &model.Exam{
		UserID:      ownerID,
		Title:       req.Title,
		Subject:     req.Subject,
		Description: req.Description,
		Duration:    req.Duration,
		Status:      model.ExamDraft,
	}

	// 分享码靠唯一索引兜底，冲突时换码重试
	var err error
	for i := 0; i < shareCodeMaxRetries; i++ {
		exam.ShareCode, err = util.GenerateShareCode()
		if err != nil {
			return nil, err
		}
		err = s.ExamRepo.Create(exam)
		if err == nil {
			return exam, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		logger.Log.Warn("share code collision, retrying", zap.String("code", exam.ShareCode))
	}
	return nil, err
}

func (s *ExamService) UpdateExam(ownerID, examID uint, req ExamUpdateRequest) (*model.Exam, error) {
	exam, err := s.ownedExam(ownerID, examID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Subject != nil {
		exam.Subject = *req.Subject
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.Duration != nil {
		if *req.Duration <= 0 {
			return nil, util.ErrInvalidDuration
		}
		exam.Duration = *req.Duration
	}

	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, err
	}
	s.invalidateCache(exam.ShareCode)
	return exam, nil
}

// ChangeStatus 状态转换：draft→active，active⇄archived
func (s *ExamService) ChangeStatus(ownerID, examID uint, next model.ExamStatus) (*model.Exam, error) {
	exam, err := s.ownedExam(ownerID, examID)
	if err != nil {
		return nil, err
	}

	if !exam.CanTransitionTo(next) {
		return nil, util.ErrInvalidTransition
	}

	exam.Status = next
	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, err
	}
	s.invalidateCache(exam.ShareCode)
	return exam, nil
}

// DeleteExam 仅允许删除草稿
func (s *ExamService) DeleteExam(ownerID, examID uint) error {
	exam, err := s.ownedExam(ownerID, examID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamDraft {
		return util.ErrInvalidTransition
	}
	return s.ExamRepo.Delete(exam)
}

func (s *ExamService) GetExamForOwner(ownerID, examID uint) (*model.Exam, error) {
	return s.ownedExam(ownerID, examID)
}

// GetExam 按 ID 查考试，不校验状态。
// 用于已开始的答卷场景：考试中途被下线归档，考生仍要能继续自己的会话。
func (s *ExamService) GetExam(examID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	return exam, nil
}

// GetExamForStudent 学生只能看到 active 的考试
func (s *ExamService) GetExamForStudent(examID uint) (*model.Exam, error) {
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
	return exam, nil
}

// FindByShareCode 按分享码查考试，带 Redis 缓存
func (s *ExamService) FindByShareCode(code string) (*model.Exam, error) {
	ctx := context.Background()

	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, shareCodeCachePrefix+code).Result(); err == nil {
			var cached model.Exam
			if json.Unmarshal([]byte(val), &cached) == nil && cached.Status == model.ExamActive {
				return &cached, nil
			}
		}
	}

	exam, err := s.ExamRepo.FindByShareCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if exam.Status != model.ExamActive {
		return nil, util.ErrExamNotActive
	}

	if s.Redis != nil {
		if buf, err := json.Marshal(exam); err == nil {
			s.Redis.Set(ctx, shareCodeCachePrefix+exam.ShareCode, buf, shareCodeCacheTTL)
		}
	}
	return exam, nil
}

func (s *ExamService) ListMine(ownerID uint, page, limit int) ([]model.Exam, int64, error) {
	return s.ExamRepo.ListByOwner(ownerID, page, limit)
}

func (s *ExamService) ListActive(page, limit int) ([]model.Exam, int64, error) {
	return s.ExamRepo.ListActive(page, limit)
}

// UploadAttachment 上传考试附件，返回可访问 URL 并写回考试。
// 文件内容做深度嗅探校验，存储时使用嗅探出的 MIME，不信任客户端报的 Content-Type。
func (s *ExamService) UploadAttachment(ownerID, examID uint, filename string, reader io.Reader, size int64) (*model.Exam, error) {
	exam, err := s.ownedExam(ownerID, examID)
	if err != nil {
		return nil, err
	}

	allowedTypes := []string{util.MimeImage, util.MimePDF, util.MimeOctetStream}
	mimeType, err := util.ValidateMimeType(reader, allowedTypes)
	if err != nil {
		logger.Log.Warn("attachment rejected", zap.String("filename", filename), zap.Error(err))
		return nil, util.ErrInvalidAttachment
	}
	// 重置读取指针
	if seeker, ok := reader.(io.Seeker); ok {
		seeker.Seek(0, io.SeekStart)
	}

	objectName := "exam-attachments/" + uuid.New().String() + filepath.Ext(filename)
	url, err := s.Storage.Provider.Upload(context.Background(), objectName, reader, size, mimeType)
	if err != nil {
		return nil, err
	}

	exam.AttachmentURL = url
	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, err
	}
	s.invalidateCache(exam.ShareCode)
	return exam, nil
}

type QuestionRequest struct {
	Type              model.QuestionType     `json:"type" binding:"required"`
	Text              string                 `json:"text" binding:"required"`
	Points            int                    `json:"points" binding:"required"`
	Order             int                    `json:"order"`
	Options           []model.QuestionOption `json:"options"`
	CorrectAnswer     string                 `json:"correctAnswer"`
	AcceptableAnswers []string               `json:"acceptableAnswers"`
}

func (s *ExamService) AddQuestion(ownerID, examID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.ownedExam(ownerID, examID); err != nil {
		return nil, err
	}
	q := &model.Question{ExamID: examID}
	if err := applyQuestionRequest(q, req); err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Create(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *ExamService) UpdateQuestion(ownerID, questionID uint, req QuestionRequest) (*model.Question, error) {
	q, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if _, err := s.ownedExam(ownerID, q.ExamID); err != nil {
		return nil, err
	}
	if err := applyQuestionRequest(q, req); err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Update(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *ExamService) DeleteQuestion(ownerID, questionID uint) error {
	q, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	if _, err := s.ownedExam(ownerID, q.ExamID); err != nil {
		return err
	}
	return s.QuestionRepo.Delete(q)
}

// ListQuestions forStudent 为 true 时剔除答案字段
func (s *ExamService) ListQuestions(examID uint, forStudent bool) ([]model.Question, error) {
	questions, err := s.QuestionRepo.ListByExam(examID)
	if err != nil {
		return nil, err
	}
	if forStudent {
		for i := range questions {
			questions[i] = questions[i].Sanitize()
		}
	}
	return questions, nil
}

func (s *ExamService) ownedExam(ownerID, examID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if exam.UserID != ownerID {
		return nil, util.ErrPermissionDenied
	}
	return exam, nil
}

func (s *ExamService) invalidateCache(code string) {
	if s.Redis == nil || code == "" {
		return
	}
	s.Redis.Del(context.Background(), shareCodeCachePrefix+code)
}

func applyQuestionRequest(q *model.Question, req QuestionRequest) error {
	if req.Points <= 0 {
		return util.ErrInvalidQuestion
	}

	switch req.Type {
	case model.MultipleChoice:
		if len(req.Options) < 2 {
			return util.ErrInvalidQuestion
		}
		found := false
		for _, o := range req.Options {
			if o.ID == req.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return util.ErrInvalidQuestion
		}
	case model.TrueFalse:
		if req.CorrectAnswer != "true" && req.CorrectAnswer != "false" {
			return util.ErrInvalidQuestion
		}
	case model.Essay:
		// 参考答案可选
	default:
		return util.ErrInvalidQuestion
	}

	q.Type = req.Type
	q.Text = req.Text
	q.Points = req.Points
	q.Order = req.Order
	q.CorrectAnswer = req.CorrectAnswer

	if len(req.Options) > 0 {
		buf, err := json.Marshal(req.Options)
		if err != nil {
			return err
		}
		q.Options = buf
	} else {
		q.Options = nil
	}

	if len(req.AcceptableAnswers) > 0 {
		buf, err := json.Marshal(req.AcceptableAnswers)
		if err != nil {
			return err
		}
		q.AcceptableAnswers = buf
	} else {
		q.AcceptableAnswers = nil
	}

	return nil
}
