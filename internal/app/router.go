package app

import (
	"exam_hub_backend/docs"
	"exam_hub_backend/internal/config"
	"exam_hub_backend/internal/middleware"
	"exam_hub_backend/internal/model"
	"exam_hub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	// Swagger文档路由
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus指标
	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		// 公共路由
		api.GET("/health", c.health.HealthCheck)
		api.POST("/register", c.auth.Register)
		api.POST("/login", c.auth.Login)

		// 需要认证的路由
		auth := api.Group("")
		auth.Use(middleware.AuthMiddleware(cfg))
		auth.Use(middleware.ActivityMiddleware(repos.user))
		{
			auth.GET("/profile", c.auth.GetProfile)

			// 考生侧：进行中的考试与答卷
			auth.GET("/exams", c.exam.ListActive)
			auth.GET("/exams/code/:code", c.exam.GetByShareCode)
			auth.GET("/exams/:id", c.exam.GetExamForStudent)
			auth.POST("/exams/:id/attempts", c.attempt.StartAttempt)

			auth.GET("/attempts", c.attempt.ListMine)
			auth.GET("/attempts/:id", c.attempt.GetAttempt)
			auth.POST("/attempts/:id/answers", c.attempt.SubmitAnswer)
			auth.POST("/attempts/:id/complete", c.attempt.CompleteAttempt)
			auth.GET("/attempts/:id/session", c.attempt.JoinSession)

			auth.POST("/answers/:id/grading-requests", c.grading.RequestReview)

			// 教师侧
			teacher := auth.Group("/teacher")
			teacher.Use(middleware.RoleMiddleware(model.Teacher))
			{
				teacher.POST("/exams", c.exam.CreateExam)
				teacher.GET("/exams", c.exam.ListMine)
				teacher.GET("/exams/:id", c.exam.GetExam)
				teacher.PUT("/exams/:id", c.exam.UpdateExam)
				teacher.POST("/exams/:id/status", c.exam.ChangeStatus)
				teacher.DELETE("/exams/:id", c.exam.DeleteExam)
				teacher.POST("/exams/:id/attachment", c.exam.UploadAttachment)

				teacher.POST("/exams/:id/questions", c.exam.AddQuestion)
				teacher.GET("/exams/:id/questions", c.exam.ListQuestions)
				teacher.PUT("/questions/:id", c.exam.UpdateQuestion)
				teacher.DELETE("/questions/:id", c.exam.DeleteQuestion)

				teacher.GET("/exams/:id/attempts", c.attempt.ListByExam)

				teacher.GET("/grading-requests", c.grading.ListPending)
				teacher.POST("/grading-requests/:id/resolve", c.grading.Resolve)
				teacher.POST("/answers/:id/grade", c.grading.GradeAnswer)
			}
		}
	}
}
