package service

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/util"
	"exam_hub_backend/pkg/logger"
	"exam_hub_backend/pkg/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 考试会话状态机：not_started → in_progress → submitting → completed。
// 倒计时归零触发一次不可取消的强制交卷；手动交卷走同一条收尾路径。

const (
	sessionWriteWait  = 10 * time.Second
	sessionPongWait   = 60 * time.Second
	sessionPingPeriod = (sessionPongWait * 9) / 10
	sessionTick       = time.Second
)

const (
	SessionNotStarted = "not_started"
	SessionInProgress = "in_progress"
	SessionSubmitting = "submitting"
	SessionCompleted  = "completed"
)

var sessionUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// attemptRunner 会话依赖的答卷操作，由 AttemptService 提供
type attemptRunner interface {
	SubmitAnswer(attemptID, questionID uint, answerText string, callerID uint) (*model.Answer, error)
	CompleteAttempt(attemptID, callerID uint) (*model.ExamAttempt, error)
}

// SessionMessage 会话双向消息。
// 入站 type：answer / navigate / submit；
// 出站 type：tick / saved / save_error / navigated / completed / error。
type SessionMessage struct {
	Type       string      `json:"type"`
	QuestionID uint        `json:"questionId,omitempty"`
	Answer     string      `json:"answer,omitempty"`
	Index      int         `json:"index,omitempty"`
	Remaining  int         `json:"remaining,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

type ExamSessionHub struct {
	attempts attemptRunner

	mu       sync.Mutex
	sessions map[uint]*ExamSession // attemptID → session
}

func NewExamSessionHub(attempts attemptRunner) *ExamSessionHub {
	return &ExamSessionHub{
		attempts: attempts,
		sessions: make(map[uint]*ExamSession),
	}
}

// Serve 把一条已鉴权的 websocket 连接接入考试会话。
// 同一答卷重复接入时替换旧连接（刷新页面重连）。
func (h *ExamSessionHub) Serve(w http.ResponseWriter, r *http.Request, attempt *model.ExamAttempt, exam *model.Exam) error {
	if attempt.Completed() {
		return util.ErrAttemptCompleted
	}

	conn, err := sessionUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	session := newExamSession(h.attempts, attempt.ID, attempt.UserID, attempt.Deadline(exam))
	session.conn = conn

	h.mu.Lock()
	if old, ok := h.sessions[attempt.ID]; ok {
		old.close()
	}
	h.sessions[attempt.ID] = session
	h.mu.Unlock()

	monitoring.ActiveSessionGauge.Inc()
	session.begin()

	go session.writePump()
	go func() {
		session.readPump()
		h.detach(session)
	}()
	return nil
}

// Stop 关闭所有在线会话（服务退出时调用）。
// 不强制交卷：未完成的答卷由后台超时清扫兜底。
func (h *ExamSessionHub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.close()
		delete(h.sessions, id)
	}
}

func (h *ExamSessionHub) detach(s *ExamSession) {
	h.mu.Lock()
	if h.sessions[s.attemptID] == s {
		delete(h.sessions, s.attemptID)
	}
	h.mu.Unlock()
	monitoring.ActiveSessionGauge.Dec()
	s.close()
}

type ExamSession struct {
	attempts  attemptRunner
	conn      *websocket.Conn
	attemptID uint
	userID    uint
	deadline  time.Time

	mu      sync.Mutex
	state   string
	current int             // 当前题目索引，仅随 navigate 变化
	pending map[uint]string // 保存失败待重试的答案，交卷前强制冲刷

	send      chan SessionMessage
	closeOnce sync.Once
	closed    chan struct{}
}

func newExamSession(attempts attemptRunner, attemptID, userID uint, deadline time.Time) *ExamSession {
	return &ExamSession{
		attempts:  attempts,
		attemptID: attemptID,
		userID:    userID,
		deadline:  deadline,
		state:     SessionNotStarted,
		pending:   make(map[uint]string),
		send:      make(chan SessionMessage, 32),
		closed:    make(chan struct{}),
	}
}

func (s *ExamSession) begin() {
	s.mu.Lock()
	if s.state == SessionNotStarted {
		s.state = SessionInProgress
	}
	s.mu.Unlock()
}

func (s *ExamSession) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining 剩余秒数，向下取整，不为负
func (s *ExamSession) Remaining(now time.Time) int {
	left := int(s.deadline.Sub(now).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// HandleAnswer 每次答案变化立刻落库并触发判分。
// 保存失败不打断答题：进入 pending 缓冲，交卷前重试，同时回送非阻塞提示。
func (s *ExamSession) HandleAnswer(questionID uint, answerText string) {
	s.mu.Lock()
	if s.state != SessionInProgress {
		s.mu.Unlock()
		s.trySend(SessionMessage{Type: "error", Message: "attempt no longer accepting answers"})
		return
	}
	s.mu.Unlock()

	answer, err := s.attempts.SubmitAnswer(s.attemptID, questionID, answerText, s.userID)
	if err != nil {
		if errors.Is(err, util.ErrAttemptCompleted) || errors.Is(err, util.ErrAnswerLocked) {
			s.trySend(SessionMessage{Type: "save_error", QuestionID: questionID, Message: err.Error()})
			return
		}
		s.mu.Lock()
		s.pending[questionID] = answerText
		s.mu.Unlock()
		s.trySend(SessionMessage{Type: "save_error", QuestionID: questionID, Message: "save failed, will retry on submit"})
		logger.Log.Warn("answer save failed, buffered",
			zap.Uint("attemptId", s.attemptID),
			zap.Uint("questionId", questionID),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	delete(s.pending, questionID)
	s.mu.Unlock()
	s.trySend(SessionMessage{Type: "saved", QuestionID: questionID, Data: answer})
}

// HandleNavigate 题间跳转不限制方向，也不影响计时
func (s *ExamSession) HandleNavigate(index int) {
	if index < 0 {
		index = 0
	}
	s.mu.Lock()
	s.current = index
	s.mu.Unlock()
	s.trySend(SessionMessage{Type: "navigated", Index: index})
}

// Finish 收尾路径：手动交卷和倒计时归零共用，保证恰好执行一次。
// 先冲刷 pending 缓冲再交卷，避免最后一题的修改丢失。
func (s *ExamSession) Finish(reason string) {
	s.mu.Lock()
	if s.state == SessionSubmitting || s.state == SessionCompleted {
		s.mu.Unlock()
		return
	}
	s.state = SessionSubmitting
	flush := s.pending
	s.pending = make(map[uint]string)
	s.mu.Unlock()

	for questionID, answerText := range flush {
		if _, err := s.attempts.SubmitAnswer(s.attemptID, questionID, answerText, s.userID); err != nil {
			logger.Log.Error("flush buffered answer failed",
				zap.Uint("attemptId", s.attemptID),
				zap.Uint("questionId", questionID),
				zap.Error(err))
		}
	}

	attempt, err := s.attempts.CompleteAttempt(s.attemptID, s.userID)
	if err != nil && !errors.Is(err, util.ErrAttemptCompleted) {
		logger.Log.Error("complete attempt from session failed",
			zap.Uint("attemptId", s.attemptID),
			zap.Error(err))
	}

	s.mu.Lock()
	s.state = SessionCompleted
	s.mu.Unlock()

	s.trySend(SessionMessage{Type: "completed", Reason: reason, Data: attempt})
}

func (s *ExamSession) readPump() {
	defer s.conn.Close()
	s.conn.SetReadDeadline(time.Now().Add(sessionPongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(sessionPongWait))
		return nil
	})

	for {
		var msg SessionMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warn("exam session closed unexpectedly",
					zap.Uint("attemptId", s.attemptID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "answer":
			s.HandleAnswer(msg.QuestionID, msg.Answer)
		case "navigate":
			s.HandleNavigate(msg.Index)
		case "submit":
			s.Finish("manual")
			return
		default:
			s.trySend(SessionMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

func (s *ExamSession) writePump() {
	ticker := time.NewTicker(sessionTick)
	ping := time.NewTicker(sessionPingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Type == "completed" {
				return
			}
		case now := <-ticker.C:
			remaining := s.Remaining(now)
			s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteJSON(SessionMessage{Type: "tick", Remaining: remaining}); err != nil {
				return
			}
			if remaining == 0 {
				// 到点强制交卷，Finish 内部保证只生效一次
				go s.Finish("timeout")
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *ExamSession) trySend(msg SessionMessage) {
	select {
	case s.send <- msg:
	case <-s.closed:
	default:
	}
}

func (s *ExamSession) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}
