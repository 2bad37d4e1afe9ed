package controller

import (
	"exam_hub_backend/internal/service"
	"exam_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service     *service.AttemptService
	ExamService *service.ExamService
	SessionHub  *service.ExamSessionHub
}

func NewAttemptController(svc *service.AttemptService, examSvc *service.ExamService, hub *service.ExamSessionHub) *AttemptController {
	return &AttemptController{Service: svc, ExamService: examSvc, SessionHub: hub}
}

// @Summary 开始答卷（幂等：已有未完成答卷时返回原答卷）
// @Tags 答卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Success 201 {object} util.Response
// @Router /api/exams/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Service.StartAttempt(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

type submitAnswerRequest struct {
	QuestionID uint   `json:"questionId" binding:"required"`
	Answer     string `json:"answer"`
}

// @Summary 提交/修改单题答案（客观题即时判分）
// @Tags 答卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "答卷ID"
// @Param body body submitAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers [post]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req submitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.Service.SubmitAnswer(util.MustParseUint(ctx.Param("id")), req.QuestionID, req.Answer, user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// @Summary 交卷
// @Tags 答卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/complete [post]
func (c *AttemptController) CompleteAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Service.CompleteAttempt(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 答卷详情（含每题作答）
// @Tags 答卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attemptID := util.MustParseUint(ctx.Param("id"))
	attempt, err := c.Service.GetAttempt(attemptID, user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}

	answers, err := c.Service.ListAnswers(attemptID, user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"attempt": attempt, "answers": answers})
}

// @Summary 我的答卷列表
// @Tags 答卷
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/attempts [get]
func (c *AttemptController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.ListMine(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 某考试的全部答卷（教师）
// @Tags 答卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/exams/{id}/attempts [get]
func (c *AttemptController) ListByExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.ListByExam(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 接入考试会话（websocket：倒计时/答案/交卷）
// @Tags 答卷
// @Security BearerAuth
// @Param id path int true "答卷ID"
// @Router /api/attempts/{id}/session [get]
func (c *AttemptController) JoinSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Service.GetAttempt(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	if attempt.UserID != user.UserID {
		// 教师可以查看答卷，但考试会话只属于考生本人
		util.Forbidden(ctx)
		return
	}

	// 不检查考试状态：考试中途被归档不应把正在作答的考生挡在会话外
	exam, err := c.ExamService.GetExam(attempt.ExamID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}

	if err := c.SessionHub.Serve(ctx.Writer, ctx.Request, attempt, exam); err != nil {
		util.FromError(ctx, err)
		return
	}
}
