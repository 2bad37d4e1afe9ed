package service

import (
	"errors"
	"testing"
	"time"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/util"
	"exam_hub_backend/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStartAttemptIdempotent(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.createActiveExam(t)

	first, err := env.attempts.StartAttempt(exam.ID, studentID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if first.MaxScore != 17 {
		t.Fatalf("maxScore = %d, want 17", first.MaxScore)
	}
	if first.Completed() || first.Score != nil {
		t.Fatal("new attempt should be in progress with null score")
	}

	second, err := env.attempts.StartAttempt(exam.ID, studentID)
	if err != nil {
		t.Fatalf("StartAttempt again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same attempt %d, got %d", first.ID, second.ID)
	}

	// 别的考生各开各的
	other, err := env.attempts.StartAttempt(exam.ID, studentID+1)
	if err != nil {
		t.Fatalf("StartAttempt other user: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("attempts of different users must be distinct")
	}
}

func TestStartAttemptMaxScoreFrozen(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.createActiveExam(t)

	attempt, err := env.attempts.StartAttempt(exam.ID, studentID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	// 开考后教师再加题，不改已开始答卷的满分
	_, err = env.exams.AddQuestion(teacherID, exam.ID, QuestionRequest{
		Type: model.TrueFalse, Text: "后加的题", Points: 8, CorrectAnswer: "false",
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}

	got, err := env.attempts.GetAttempt(attempt.ID, studentID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.MaxScore != 17 {
		t.Fatalf("maxScore = %d, want frozen 17", got.MaxScore)
	}

	// 新答卷拿到新的总分
	fresh, err := env.attempts.StartAttempt(exam.ID, studentID+1)
	if err != nil {
		t.Fatalf("StartAttempt fresh: %v", err)
	}
	if fresh.MaxScore != 25 {
		t.Fatalf("fresh maxScore = %d, want 25", fresh.MaxScore)
	}
}

func TestStartAttemptRejectsInactiveExam(t *testing.T) {
	env := newTestEnv(t)

	exam, err := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "草稿", Duration: 10})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if _, err := env.attempts.StartAttempt(exam.ID, studentID); !errors.Is(err, util.ErrExamNotActive) {
		t.Fatalf("err = %v, want ErrExamNotActive", err)
	}
	if _, err := env.attempts.StartAttempt(exam.ID+99, studentID); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestSubmitAnswerUpsertAndRegrade(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.createActiveExam(t)
	mc := questions[0]

	attempt, err := env.attempts.StartAttempt(exam.ID, studentID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	wrong, err := env.attempts.SubmitAnswer(attempt.ID, mc.ID, "a", studentID)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if wrong.IsCorrect == nil || *wrong.IsCorrect || *wrong.Score != 0 {
		t.Fatalf("expected wrong/0, got isCorrect=%v score=%v", wrong.IsCorrect, wrong.Score)
	}

	// 同一题重交：同一行被更新并重新判分
	right, err := env.attempts.SubmitAnswer(attempt.ID, mc.ID, "b", studentID)
	if err != nil {
		t.Fatalf("SubmitAnswer again: %v", err)
	}
	if right.ID != wrong.ID {
		t.Fatalf("expected upsert on answer %d, got new row %d", wrong.ID, right.ID)
	}
	if right.IsCorrect == nil || !*right.IsCorrect || *right.Score != 5 {
		t.Fatalf("expected correct/5, got isCorrect=%v score=%v", right.IsCorrect, right.Score)
	}

	answers, err := env.attempts.ListAnswers(attempt.ID, studentID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer row, got %d", len(answers))
	}
}

func TestSubmitAnswerEssayStaysUngraded(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.createActiveExam(t)
	essay := questions[2]

	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)
	answer, err := env.attempts.SubmitAnswer(attempt.ID, essay.ID, "goroutine 由运行时调度", studentID)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if answer.IsCorrect != nil || answer.Score != nil {
		t.Fatalf("essay answer must stay ungraded, got isCorrect=%v score=%v", answer.IsCorrect, answer.Score)
	}
}

func TestSubmitAnswerGradeMetrics(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.createActiveExam(t)
	mc, essay := questions[0], questions[2]

	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)

	correct := monitoring.AnswerGradeCounter.WithLabelValues("correct")
	incorrect := monitoring.AnswerGradeCounter.WithLabelValues("incorrect")
	correctBefore := testutil.ToFloat64(correct)
	incorrectBefore := testutil.ToFloat64(incorrect)

	if _, err := env.attempts.SubmitAnswer(attempt.ID, mc.ID, "b", studentID); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(attempt.ID, mc.ID, "a", studentID); err != nil {
		t.Fatalf("SubmitAnswer again: %v", err)
	}
	// 主观题不产生自动判分事件
	if _, err := env.attempts.SubmitAnswer(attempt.ID, essay.ID, "作答", studentID); err != nil {
		t.Fatalf("SubmitAnswer essay: %v", err)
	}

	if got := testutil.ToFloat64(correct) - correctBefore; got != 1 {
		t.Fatalf("correct delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(incorrect) - incorrectBefore; got != 1 {
		t.Fatalf("incorrect delta = %v, want 1", got)
	}
}

func TestSubmitAnswerGuards(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.createActiveExam(t)
	mc := questions[0]

	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)

	// 别人的答卷
	if _, err := env.attempts.SubmitAnswer(attempt.ID, mc.ID, "b", studentID+1); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	// 不属于本考试的题目
	other, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "另一场", Duration: 10})
	foreign, err := env.exams.AddQuestion(teacherID, other.ID, QuestionRequest{
		Type: model.TrueFalse, Text: "x", Points: 1, CorrectAnswer: "true",
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(attempt.ID, foreign.ID, "true", studentID); !errors.Is(err, util.ErrQuestionNotFound) {
		t.Fatalf("err = %v, want ErrQuestionNotFound", err)
	}

	// 完成后不再接受答案
	if _, err := env.attempts.CompleteAttempt(attempt.ID, studentID); err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(attempt.ID, mc.ID, "b", studentID); !errors.Is(err, util.ErrAttemptCompleted) {
		t.Fatalf("err = %v, want ErrAttemptCompleted", err)
	}
}

func TestCompleteAttemptAggregatesScores(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.createActiveExam(t)

	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)

	// 选择题答对(5)，判断题答错(0)，主观题未判分(按 0)
	if _, err := env.attempts.SubmitAnswer(attempt.ID, questions[0].ID, "b", studentID); err != nil {
		t.Fatalf("SubmitAnswer mc: %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(attempt.ID, questions[1].ID, "false", studentID); err != nil {
		t.Fatalf("SubmitAnswer tf: %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(attempt.ID, questions[2].ID, "随便写写", studentID); err != nil {
		t.Fatalf("SubmitAnswer essay: %v", err)
	}

	done, err := env.attempts.CompleteAttempt(attempt.ID, studentID)
	if err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if !done.Completed() {
		t.Fatal("attempt should be completed")
	}
	if done.Score == nil || *done.Score != 5 {
		t.Fatalf("score = %v, want 5", done.Score)
	}
	if done.MaxScore != 17 {
		t.Fatalf("maxScore = %d, want 17", done.MaxScore)
	}
	if done.TimeSpent < 0 {
		t.Fatalf("timeSpent = %d, want >= 0", done.TimeSpent)
	}
}

func TestCompleteAttemptExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.createActiveExam(t)

	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)
	if _, err := env.attempts.CompleteAttempt(attempt.ID, studentID); err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if _, err := env.attempts.CompleteAttempt(attempt.ID, studentID); !errors.Is(err, util.ErrAttemptCompleted) {
		t.Fatalf("second complete err = %v, want ErrAttemptCompleted", err)
	}

	// 完成后可再开新答卷
	fresh, err := env.attempts.StartAttempt(exam.ID, studentID)
	if err != nil {
		t.Fatalf("StartAttempt after complete: %v", err)
	}
	if fresh.ID == attempt.ID {
		t.Fatal("expected a new attempt after completion")
	}
}

func TestGetAttemptVisibility(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.createActiveExam(t)
	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)

	if _, err := env.attempts.GetAttempt(attempt.ID, studentID); err != nil {
		t.Fatalf("owner GetAttempt: %v", err)
	}
	if _, err := env.attempts.GetAttempt(attempt.ID, teacherID); err != nil {
		t.Fatalf("exam owner GetAttempt: %v", err)
	}
	if _, err := env.attempts.GetAttempt(attempt.ID, studentID+7); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	if _, err := env.attempts.ListByExam(exam.ID, studentID+7); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("ListByExam err = %v, want ErrPermissionDenied", err)
	}
	attempts, err := env.attempts.ListByExam(exam.ID, teacherID)
	if err != nil {
		t.Fatalf("ListByExam: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
}

func TestCompleteExpired(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.createActiveExam(t) // 30 分钟

	attempt, _ := env.attempts.StartAttempt(exam.ID, studentID)

	// 截止前不动
	if n := env.attempts.CompleteExpired(time.Now()); n != 0 {
		t.Fatalf("expired = %d, want 0", n)
	}

	// 截止后强制完成
	if n := env.attempts.CompleteExpired(time.Now().Add(31 * time.Minute)); n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	got, err := env.attempts.GetAttempt(attempt.ID, studentID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if !got.Completed() {
		t.Fatal("expired attempt should be completed")
	}

	// 再扫一遍不重复计数
	if n := env.attempts.CompleteExpired(time.Now().Add(time.Hour)); n != 0 {
		t.Fatalf("second sweep expired = %d, want 0", n)
	}
}
