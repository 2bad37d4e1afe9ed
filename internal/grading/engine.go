// Package grading 客观题自动判分。
// 主观题（essay）与未知题型一律不判，留给人工评分。
package grading

import (
	"exam_hub_backend/internal/model"
)

// Result 判分结果。IsCorrect/Score 为 nil 表示未判分。
type Result struct {
	IsCorrect *bool
	Score     *int
}

// Graded 是否产生了判分结果
func (r Result) Graded() bool {
	return r.IsCorrect != nil && r.Score != nil
}

// Grade 按题型对提交答案判分。
// 选择题/判断题：与 correctAnswer 做字符串全等比较，对得满分、错得 0 分。
// 其余题型不判分，返回零值 Result。
func Grade(q *model.Question, submitted string) Result {
	switch q.Type {
	case model.MultipleChoice, model.TrueFalse:
		correct := submitted == q.CorrectAnswer
		score := 0
		if correct {
			score = q.Points
		}
		return Result{IsCorrect: &correct, Score: &score}
	default:
		return Result{}
	}
}

// Apply 将判分结果写到答案上；未判分时清空既有判分字段，
// 保证重新作答后不会残留旧分数。
func (r Result) Apply(a *model.Answer) {
	a.IsCorrect = r.IsCorrect
	a.Score = r.Score
}
