package service

import (
	"testing"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	teacherID = uint(1)
	studentID = uint(2)
)

type testEnv struct {
	db       *gorm.DB
	exams    *ExamService
	attempts *AttemptService
	grading  *GradingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	// 内存库按连接隔离，收敛到单连接
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	requestRepo := repository.NewGradingRequestRepository(db)

	return &testEnv{
		db:       db,
		exams:    NewExamService(examRepo, questionRepo, nil, nil),
		attempts: NewAttemptService(attemptRepo, answerRepo, examRepo, questionRepo, db),
		grading:  NewGradingService(requestRepo, answerRepo, attemptRepo, examRepo, questionRepo, db),
	}
}

// createActiveExam 建考试、加题、上线，返回考试和题目（两道选择题 + 一道主观题，满分 5+2+10）
func (e *testEnv) createActiveExam(t *testing.T) (*model.Exam, []model.Question) {
	t.Helper()

	exam, err := e.exams.CreateExam(teacherID, ExamCreateRequest{Title: "Go 基础测验", Duration: 30})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	requests := []QuestionRequest{
		{
			Type:   model.MultipleChoice,
			Text:   "哪个关键字声明变量？",
			Points: 5,
			Order:  1,
			Options: []model.QuestionOption{
				{ID: "a", Text: "let"},
				{ID: "b", Text: "var"},
			},
			CorrectAnswer: "b",
		},
		{
			Type:          model.TrueFalse,
			Text:          "Go 有泛型。",
			Points:        2,
			Order:         2,
			CorrectAnswer: "true",
		},
		{
			Type:   model.Essay,
			Text:   "简述 goroutine 与线程的区别。",
			Points: 10,
			Order:  3,
		},
	}

	var questions []model.Question
	for _, req := range requests {
		q, err := e.exams.AddQuestion(teacherID, exam.ID, req)
		if err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
		questions = append(questions, *q)
	}

	exam, err = e.exams.ChangeStatus(teacherID, exam.ID, model.ExamActive)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	return exam, questions
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }
