package util

import "errors"

// 领域错误按四类划分：不存在 / 无权限 / 状态非法 / 输入非法。
// controller 层通过 errors.Is 映射到 HTTP 状态码，见 response.go。

var (
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUserNotFound     = errors.New("user not found")
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAnswerNotFound   = errors.New("answer not found")
	ErrRequestNotFound  = errors.New("grading request not found")

	ErrPermissionDenied = errors.New("permission denied")

	ErrExamNotActive     = errors.New("exam not active")
	ErrInvalidTransition = errors.New("invalid exam status transition")
	ErrAttemptCompleted  = errors.New("attempt already completed")
	ErrAnswerLocked      = errors.New("answer already manually graded")
	ErrRequestResolved   = errors.New("grading request already resolved")

	ErrInvalidDecision   = errors.New("decision must be approved or rejected")
	ErrScoreOutOfRange   = errors.New("score out of range for question")
	ErrInvalidQuestion   = errors.New("invalid question definition")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrInvalidAttachment = errors.New("unsupported attachment content")
)

var notFoundErrs = []error{
	ErrUserNotFound, ErrExamNotFound, ErrQuestionNotFound,
	ErrAttemptNotFound, ErrAnswerNotFound, ErrRequestNotFound,
}

var conflictErrs = []error{
	ErrExamNotActive, ErrInvalidTransition, ErrAttemptCompleted,
	ErrAnswerLocked, ErrRequestResolved,
}

var badRequestErrs = []error{
	ErrInvalidDecision, ErrScoreOutOfRange, ErrInvalidQuestion,
	ErrInvalidDuration, ErrInvalidAttachment, ErrEmailRegistered,
}

func IsNotFound(err error) bool     { return matchAny(err, notFoundErrs) }
func IsInvalidState(err error) bool { return matchAny(err, conflictErrs) }
func IsInvalidInput(err error) bool { return matchAny(err, badRequestErrs) }

func matchAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
