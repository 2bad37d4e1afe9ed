package controller

import (
	"exam_hub_backend/internal/service"
	"exam_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradingController struct {
	Service *service.GradingService
}

func NewGradingController(svc *service.GradingService) *GradingController {
	return &GradingController{Service: svc}
}

type reviewRequest struct {
	Reason string `json:"reason"`
}

// @Summary 申请成绩复核（学生）
// @Tags 评分
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "答案ID"
// @Param body body reviewRequest false "申请说明"
// @Success 201 {object} util.Response
// @Router /api/answers/{id}/grading-requests [post]
func (c *GradingController) RequestReview(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req reviewRequest
	_ = ctx.ShouldBindJSON(&req)

	request, err := c.Service.RequestReview(util.MustParseUint(ctx.Param("id")), user.UserID, req.Reason)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Created(ctx, request)
}

// @Summary 待处理复核请求列表（教师）
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/grading-requests [get]
func (c *GradingController) ListPending(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	requests, err := c.Service.ListPending(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, requests)
}

// @Summary 裁决复核请求（教师）
// @Tags 评分
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "复核请求ID"
// @Param body body service.ResolveRequest true "裁决：approved/rejected，可附分数"
// @Success 200 {object} util.Response
// @Router /api/teacher/grading-requests/{id}/resolve [post]
func (c *GradingController) Resolve(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ResolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	request, err := c.Service.Resolve(util.MustParseUint(ctx.Param("id")), user.UserID, req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, request)
}

type gradeRequest struct {
	Score int `json:"score"`
}

// @Summary 人工评分（教师直接给主观题打分）
// @Tags 评分
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "答案ID"
// @Param body body gradeRequest true "分数"
// @Success 200 {object} util.Response
// @Router /api/teacher/answers/{id}/grade [post]
func (c *GradingController) GradeAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req gradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.Service.GradeAnswer(util.MustParseUint(ctx.Param("id")), user.UserID, req.Score)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}
