package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/util"
)

func TestCreateExam(t *testing.T) {
	env := newTestEnv(t)

	exam, err := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "期中考", Subject: "Go", Duration: 45})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if exam.Status != model.ExamDraft {
		t.Fatalf("status = %s, want draft", exam.Status)
	}
	if len(exam.ShareCode) != 6 {
		t.Fatalf("shareCode %q, want 6 chars", exam.ShareCode)
	}
	// 分享码不含易混字符 0/O/1/I
	for _, r := range exam.ShareCode {
		if !strings.ContainsRune(util.ShareCodeAlphabet, r) {
			t.Fatalf("shareCode %q contains %q outside alphabet", exam.ShareCode, r)
		}
	}

	if _, err := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "无时长", Duration: 0}); !errors.Is(err, util.ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
}

func TestShareCodesUnique(t *testing.T) {
	env := newTestEnv(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		exam, err := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "考试", Duration: 10})
		if err != nil {
			t.Fatalf("CreateExam #%d: %v", i, err)
		}
		if seen[exam.ShareCode] {
			t.Fatalf("duplicate share code %q", exam.ShareCode)
		}
		seen[exam.ShareCode] = true
	}
}

func TestChangeStatusTransitions(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path []model.ExamStatus
		ok   bool
	}{
		{name: "draft to active", path: []model.ExamStatus{model.ExamActive}, ok: true},
		{name: "draft to archived forbidden", path: []model.ExamStatus{model.ExamArchived}, ok: false},
		{name: "active to archived", path: []model.ExamStatus{model.ExamActive, model.ExamArchived}, ok: true},
		{name: "archived back to active", path: []model.ExamStatus{model.ExamActive, model.ExamArchived, model.ExamActive}, ok: true},
		{name: "active to draft forbidden", path: []model.ExamStatus{model.ExamActive, model.ExamDraft}, ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exam, err := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: tc.name, Duration: 10})
			if err != nil {
				t.Fatalf("CreateExam: %v", err)
			}
			for i, next := range tc.path {
				_, err = env.exams.ChangeStatus(teacherID, exam.ID, next)
				last := i == len(tc.path)-1
				if !last && err != nil {
					t.Fatalf("transition #%d to %s: %v", i, next, err)
				}
				if last {
					if tc.ok && err != nil {
						t.Fatalf("final transition to %s: %v", next, err)
					}
					if !tc.ok && !errors.Is(err, util.ErrInvalidTransition) {
						t.Fatalf("final transition err = %v, want ErrInvalidTransition", err)
					}
				}
			}
		})
	}
}

func TestDeleteExamDraftOnly(t *testing.T) {
	env := newTestEnv(t)

	draft, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "草稿", Duration: 10})
	if err := env.exams.DeleteExam(teacherID, draft.ID); err != nil {
		t.Fatalf("DeleteExam draft: %v", err)
	}

	active, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "已上线", Duration: 10})
	env.exams.ChangeStatus(teacherID, active.ID, model.ExamActive)
	if err := env.exams.DeleteExam(teacherID, active.ID); !errors.Is(err, util.ErrInvalidTransition) {
		t.Fatalf("DeleteExam active err = %v, want ErrInvalidTransition", err)
	}
}

func TestExamOwnership(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "考试", Duration: 10})

	if _, err := env.exams.GetExamForOwner(teacherID+1, exam.ID); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	title := "改名"
	if _, err := env.exams.UpdateExam(teacherID+1, exam.ID, ExamUpdateRequest{Title: &title}); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.exams.GetExamForOwner(teacherID, exam.ID+99); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestUpdateExamPartial(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "原名", Subject: "Go", Duration: 10})

	title := "新名"
	updated, err := env.exams.UpdateExam(teacherID, exam.ID, ExamUpdateRequest{Title: &title})
	if err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if updated.Title != "新名" || updated.Subject != "Go" || updated.Duration != 10 {
		t.Fatalf("partial update touched other fields: %+v", updated)
	}

	bad := 0
	if _, err := env.exams.UpdateExam(teacherID, exam.ID, ExamUpdateRequest{Duration: &bad}); !errors.Is(err, util.ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
}

func TestFindByShareCode(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "分享", Duration: 10})

	// 草稿不可通过分享码进入
	if _, err := env.exams.FindByShareCode(exam.ShareCode); !errors.Is(err, util.ErrExamNotActive) {
		t.Fatalf("err = %v, want ErrExamNotActive", err)
	}

	env.exams.ChangeStatus(teacherID, exam.ID, model.ExamActive)
	found, err := env.exams.FindByShareCode(exam.ShareCode)
	if err != nil {
		t.Fatalf("FindByShareCode: %v", err)
	}
	if found.ID != exam.ID {
		t.Fatalf("found exam %d, want %d", found.ID, exam.ID)
	}

	if _, err := env.exams.FindByShareCode("ZZZZZZ"); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestGetExamAnyStatus(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "归档", Duration: 10})
	env.exams.ChangeStatus(teacherID, exam.ID, model.ExamActive)
	env.exams.ChangeStatus(teacherID, exam.ID, model.ExamArchived)

	// 考试被归档后学生入口关闭，但已开始的答卷仍要能拿到考试信息续联会话
	if _, err := env.exams.GetExamForStudent(exam.ID); !errors.Is(err, util.ErrExamNotActive) {
		t.Fatalf("err = %v, want ErrExamNotActive", err)
	}
	found, err := env.exams.GetExam(exam.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if found.ID != exam.ID {
		t.Fatalf("found exam %d, want %d", found.ID, exam.ID)
	}

	if _, err := env.exams.GetExam(exam.ID + 99); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

// recordingProvider 记录最近一次上传，供断言存储侧收到的内容与类型
type recordingProvider struct {
	contentType string
	data        []byte
	uploads     int
}

func (p *recordingProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	buf, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	p.data = buf
	p.contentType = contentType
	p.uploads++
	return "/uploads/" + filename, nil
}

func (p *recordingProvider) Delete(ctx context.Context, filename string) error { return nil }

func (p *recordingProvider) GetURL(filename string) string { return "/uploads/" + filename }

func TestUploadAttachmentSniffsContent(t *testing.T) {
	env := newTestEnv(t)
	provider := &recordingProvider{}
	env.exams.Storage = &StorageService{Provider: provider}

	exam, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "附件", Duration: 10})

	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF")
	updated, err := env.exams.UploadAttachment(teacherID, exam.ID, "syllabus.pdf", bytes.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if updated.AttachmentURL == "" {
		t.Fatal("attachment URL not written back")
	}
	if provider.contentType != "application/pdf" {
		t.Fatalf("stored content type %q, want sniffed application/pdf", provider.contentType)
	}
	// 嗅探消耗的字节要完整回灌到存储
	if !bytes.Equal(provider.data, pdf) {
		t.Fatalf("stored %d bytes, want %d", len(provider.data), len(pdf))
	}

	// HTML 冒充 PDF 被内容嗅探拦下，不落存储
	html := []byte("<!DOCTYPE html><html><script>alert(1)</script></html>")
	if _, err := env.exams.UploadAttachment(teacherID, exam.ID, "fake.pdf", bytes.NewReader(html), int64(len(html))); !errors.Is(err, util.ErrInvalidAttachment) {
		t.Fatalf("err = %v, want ErrInvalidAttachment", err)
	}
	if provider.uploads != 1 {
		t.Fatalf("uploads = %d, want 1", provider.uploads)
	}
}

func TestQuestionValidation(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.exams.CreateExam(teacherID, ExamCreateRequest{Title: "出题", Duration: 10})

	tests := []struct {
		name string
		req  QuestionRequest
		ok   bool
	}{
		{
			name: "valid choice",
			req: QuestionRequest{
				Type: model.MultipleChoice, Text: "q", Points: 5,
				Options:       []model.QuestionOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
				CorrectAnswer: "a",
			},
			ok: true,
		},
		{
			name: "choice needs two options",
			req: QuestionRequest{
				Type: model.MultipleChoice, Text: "q", Points: 5,
				Options:       []model.QuestionOption{{ID: "a", Text: "A"}},
				CorrectAnswer: "a",
			},
		},
		{
			name: "choice answer must be an option",
			req: QuestionRequest{
				Type: model.MultipleChoice, Text: "q", Points: 5,
				Options:       []model.QuestionOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
				CorrectAnswer: "c",
			},
		},
		{
			name: "true_false literal answer",
			req:  QuestionRequest{Type: model.TrueFalse, Text: "q", Points: 2, CorrectAnswer: "yes"},
		},
		{
			name: "points must be positive",
			req:  QuestionRequest{Type: model.TrueFalse, Text: "q", Points: 0, CorrectAnswer: "true"},
		},
		{
			name: "essay without reference answer",
			req:  QuestionRequest{Type: model.Essay, Text: "q", Points: 10},
			ok:   true,
		},
		{
			name: "unknown type rejected",
			req:  QuestionRequest{Type: "matching", Text: "q", Points: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.exams.AddQuestion(teacherID, exam.ID, tc.req)
			if tc.ok && err != nil {
				t.Fatalf("AddQuestion: %v", err)
			}
			if !tc.ok && !errors.Is(err, util.ErrInvalidQuestion) {
				t.Fatalf("err = %v, want ErrInvalidQuestion", err)
			}
		})
	}
}

func TestListQuestionsSanitized(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.createActiveExam(t)

	forStudent, err := env.exams.ListQuestions(exam.ID, true)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	for _, q := range forStudent {
		if q.CorrectAnswer != "" || q.AcceptableAnswers != nil {
			t.Fatalf("student view leaks answers: %+v", q)
		}
	}

	forTeacher, err := env.exams.ListQuestions(exam.ID, false)
	if err != nil {
		t.Fatalf("ListQuestions teacher: %v", err)
	}
	if forTeacher[0].CorrectAnswer == "" {
		t.Fatal("teacher view should keep answers")
	}

	// 顺序按 order 再按 id
	for i := 1; i < len(forTeacher); i++ {
		if forTeacher[i-1].Order > forTeacher[i].Order {
			t.Fatalf("questions out of order: %v then %v", forTeacher[i-1].Order, forTeacher[i].Order)
		}
	}
}
