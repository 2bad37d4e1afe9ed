package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/util"
)

type fakeRunner struct {
	mu          sync.Mutex
	submitted   map[uint]string
	submitErr   error
	completes   int
	completeErr error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{submitted: make(map[uint]string)}
}

func (f *fakeRunner) SubmitAnswer(attemptID, questionID uint, answerText string, callerID uint) (*model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted[questionID] = answerText
	return &model.Answer{AttemptID: attemptID, QuestionID: questionID, Answer: answerText}, nil
}

func (f *fakeRunner) CompleteAttempt(attemptID, callerID uint) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.completes++
	now := time.Now()
	return &model.ExamAttempt{UserID: callerID, CompletedAt: &now}, nil
}

func (f *fakeRunner) setSubmitErr(err error) {
	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
}

func (f *fakeRunner) completeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes
}

func newTestSession(runner attemptRunner, deadline time.Time) *ExamSession {
	s := newExamSession(runner, 1, studentID, deadline)
	s.begin()
	return s
}

// drainMessages 取空出站队列
func drainMessages(s *ExamSession) []SessionMessage {
	var msgs []SessionMessage
	for {
		select {
		case m := <-s.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func lastMessageOfType(msgs []SessionMessage, typ string) *SessionMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return &msgs[i]
		}
	}
	return nil
}

func TestSessionAnswerPersistsImmediately(t *testing.T) {
	runner := newFakeRunner()
	s := newTestSession(runner, time.Now().Add(time.Hour))

	s.HandleAnswer(7, "b")

	if got := runner.submitted[7]; got != "b" {
		t.Fatalf("submitted[7] = %q, want \"b\"", got)
	}
	msgs := drainMessages(s)
	if lastMessageOfType(msgs, "saved") == nil {
		t.Fatalf("expected saved message, got %v", msgs)
	}
}

func TestSessionBuffersFailedSavesAndFlushesOnFinish(t *testing.T) {
	runner := newFakeRunner()
	s := newTestSession(runner, time.Now().Add(time.Hour))

	// 落库暂时失败：进入缓冲并提示，不打断答题
	runner.setSubmitErr(errors.New("db down"))
	s.HandleAnswer(7, "first")
	s.HandleAnswer(7, "second")

	if len(runner.submitted) != 0 {
		t.Fatalf("nothing should be persisted yet, got %v", runner.submitted)
	}
	msgs := drainMessages(s)
	if lastMessageOfType(msgs, "save_error") == nil {
		t.Fatalf("expected save_error notice, got %v", msgs)
	}

	// 交卷前恢复：缓冲里最后的版本被冲刷落库
	runner.setSubmitErr(nil)
	s.Finish("manual")

	if got := runner.submitted[7]; got != "second" {
		t.Fatalf("flushed answer = %q, want \"second\"", got)
	}
	if runner.completeCount() != 1 {
		t.Fatalf("completes = %d, want 1", runner.completeCount())
	}
	if s.State() != SessionCompleted {
		t.Fatalf("state = %s, want completed", s.State())
	}
}

func TestSessionFinishExactlyOnce(t *testing.T) {
	runner := newFakeRunner()
	s := newTestSession(runner, time.Now().Add(time.Hour))

	// 手动交卷与超时路径竞争，只生效一次
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		reason := "manual"
		if i%2 == 0 {
			reason = "timeout"
		}
		wg.Add(1)
		go func(r string) {
			defer wg.Done()
			s.Finish(r)
		}(reason)
	}
	wg.Wait()

	if runner.completeCount() != 1 {
		t.Fatalf("completes = %d, want exactly 1", runner.completeCount())
	}
}

func TestSessionFinishToleratesAlreadyCompleted(t *testing.T) {
	runner := newFakeRunner()
	runner.completeErr = util.ErrAttemptCompleted
	s := newTestSession(runner, time.Now().Add(time.Hour))

	// 后台清扫先一步交了卷：会话收尾不算失败
	s.Finish("timeout")
	if s.State() != SessionCompleted {
		t.Fatalf("state = %s, want completed", s.State())
	}
	msgs := drainMessages(s)
	if lastMessageOfType(msgs, "completed") == nil {
		t.Fatalf("expected completed message, got %v", msgs)
	}
}

func TestSessionRejectsAnswersAfterFinish(t *testing.T) {
	runner := newFakeRunner()
	s := newTestSession(runner, time.Now().Add(time.Hour))

	s.Finish("manual")
	s.HandleAnswer(7, "late")

	if _, ok := runner.submitted[7]; ok {
		t.Fatal("answer after finish must not be persisted")
	}
	msgs := drainMessages(s)
	if lastMessageOfType(msgs, "error") == nil {
		t.Fatalf("expected error message, got %v", msgs)
	}
}

func TestSessionNavigate(t *testing.T) {
	runner := newFakeRunner()
	s := newTestSession(runner, time.Now().Add(time.Hour))

	s.HandleNavigate(3)
	s.HandleNavigate(-5)

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != 0 {
		t.Fatalf("current = %d, want clamped 0", current)
	}
	if len(runner.submitted) != 0 || runner.completeCount() != 0 {
		t.Fatal("navigation must not touch answers or completion")
	}
}

func TestSessionRemaining(t *testing.T) {
	runner := newFakeRunner()
	deadline := time.Now().Add(90 * time.Second)
	s := newTestSession(runner, deadline)

	if got := s.Remaining(deadline.Add(-30 * time.Second)); got != 30 {
		t.Fatalf("remaining = %d, want 30", got)
	}
	if got := s.Remaining(deadline.Add(time.Minute)); got != 0 {
		t.Fatalf("remaining after deadline = %d, want 0", got)
	}
}
