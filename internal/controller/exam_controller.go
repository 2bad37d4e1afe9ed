package controller

import (
	"strconv"

	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/service"
	"exam_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	Service *service.ExamService
}

func NewExamController(svc *service.ExamService) *ExamController {
	return &ExamController{Service: svc}
}

// @Summary 创建考试
// @Tags 考试管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ExamCreateRequest true "考试信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/exams [post]
func (c *ExamController) CreateExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ExamCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.Service.CreateExam(user.UserID, req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}

	util.Created(ctx, exam)
}

// @Summary 更新考试
// @Tags 考试管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Param body body service.ExamUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id} [put]
func (c *ExamController) UpdateExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	examID := util.MustParseUint(ctx.Param("id"))
	var req service.ExamUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.Service.UpdateExam(user.UserID, examID, req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

type statusRequest struct {
	Status model.ExamStatus `json:"status" binding:"required"`
}

// @Summary 变更考试状态（发布/归档/恢复）
// @Tags 考试管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Param body body statusRequest true "目标状态"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/status [post]
func (c *ExamController) ChangeStatus(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	examID := util.MustParseUint(ctx.Param("id"))
	var req statusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.Service.ChangeStatus(user.UserID, examID, req.Status)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 删除草稿考试
// @Tags 考试管理
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id} [delete]
func (c *ExamController) DeleteExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.DeleteExam(user.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}

// @Summary 我创建的考试列表
// @Tags 考试管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/teacher/exams [get]
func (c *ExamController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := pagination(ctx)
	exams, total, err := c.Service.ListMine(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: exams, Total: total, Page: page, Limit: limit})
}

// @Summary 考试详情（教师）
// @Tags 考试管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id} [get]
func (c *ExamController) GetExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	exam, err := c.Service.GetExamForOwner(user.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 上传考试附件
// @Tags 考试管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Param file formData file true "附件"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/attachment [post]
func (c *ExamController) UploadAttachment(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	exam, err := c.Service.UploadAttachment(user.UserID, util.MustParseUint(ctx.Param("id")),
		fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 添加题目
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Param body body service.QuestionRequest true "题目信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/exams/{id}/questions [post]
func (c *ExamController) AddQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.AddQuestion(user.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// @Summary 更新题目
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Param body body service.QuestionRequest true "题目信息"
// @Success 200 {object} util.Response
// @Router /api/teacher/questions/{id} [put]
func (c *ExamController) UpdateQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.UpdateQuestion(user.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary 删除题目
// @Tags 题目管理
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/questions/{id} [delete]
func (c *ExamController) DeleteQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.DeleteQuestion(user.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}

// @Summary 题目列表（教师，含答案）
// @Tags 题目管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/questions [get]
func (c *ExamController) ListQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	examID := util.MustParseUint(ctx.Param("id"))
	if _, err := c.Service.GetExamForOwner(user.UserID, examID); err != nil {
		util.FromError(ctx, err)
		return
	}

	questions, err := c.Service.ListQuestions(examID, false)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// @Summary 可参加的考试列表（学生）
// @Tags 考试参加
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/exams [get]
func (c *ExamController) ListActive(ctx *gin.Context) {
	page, limit := pagination(ctx)
	exams, total, err := c.Service.ListActive(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: exams, Total: total, Page: page, Limit: limit})
}

// @Summary 按分享码查考试（学生）
// @Tags 考试参加
// @Produce json
// @Security BearerAuth
// @Param code path string true "分享码"
// @Success 200 {object} util.Response
// @Router /api/exams/code/{code} [get]
func (c *ExamController) GetByShareCode(ctx *gin.Context) {
	exam, err := c.Service.FindByShareCode(ctx.Param("code"))
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 考试详情及题目（学生，不含答案）
// @Tags 考试参加
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{id} [get]
func (c *ExamController) GetExamForStudent(ctx *gin.Context) {
	examID := util.MustParseUint(ctx.Param("id"))
	exam, err := c.Service.GetExamForStudent(examID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}

	questions, err := c.Service.ListQuestions(examID, true)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"exam": exam, "questions": questions})
}

func pagination(ctx *gin.Context) (int, int) {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
