package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam_hub_backend/internal/config"
	"exam_hub_backend/internal/constants"
	"exam_hub_backend/internal/controller"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/internal/service"
	"exam_hub_backend/pkg/configwatcher"
	"exam_hub_backend/pkg/database"
	"exam_hub_backend/pkg/logger"
	"exam_hub_backend/pkg/monitoring"
	"exam_hub_backend/pkg/security"
	"exam_hub_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user           *repository.UserRepository
	exam           *repository.ExamRepository
	question       *repository.QuestionRepository
	attempt        *repository.AttemptRepository
	answer         *repository.AnswerRepository
	gradingRequest *repository.GradingRequestRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	exam       *service.ExamService
	attempt    *service.AttemptService
	grading    *service.GradingService
	sessionHub *service.ExamSessionHub
}

type controllers struct {
	auth    *controller.AuthController
	exam    *controller.ExamController
	attempt *controller.AttemptController
	grading *controller.GradingController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:           repository.NewUserRepository(db),
		exam:           repository.NewExamRepository(db),
		question:       repository.NewQuestionRepository(db),
		attempt:        repository.NewAttemptRepository(db),
		answer:         repository.NewAnswerRepository(db),
		gradingRequest: repository.NewGradingRequestRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.auth = service.NewAuthService(repos.user, cfg)
	s.exam = service.NewExamService(repos.exam, repos.question, s.storage, rdb)
	s.attempt = service.NewAttemptService(repos.attempt, repos.answer, repos.exam, repos.question, db)
	s.grading = service.NewGradingService(repos.gradingRequest, repos.answer, repos.attempt, repos.exam, repos.question, db)
	s.sessionHub = service.NewExamSessionHub(s.attempt)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		exam:    controller.NewExamController(s.exam),
		attempt: controller.NewAttemptController(s.attempt, s.exam, s.sessionHub),
		grading: controller.NewGradingController(s.grading),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 10000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 超时答卷清扫：会话断线或客户端失联时，
// 到点的答卷由服务端兜底强制交卷。
func (a *App) startBackgroundTasks(s *services) {
	interval := time.Duration(a.Config.Session.SweepIntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		for range ticker.C {
			if n := s.attempt.CompleteExpired(time.Now()); n > 0 {
				logger.Log.Info("expired attempts force-completed", zap.Int("count", n))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Log.Info("Database migration completed")
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("exam-hub", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == constants.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	// 配置热更新：限流阈值等可在运行期调整
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		reloaded, ok := newCfg.(*config.Config)
		if !ok {
			return
		}
		logger.Log.Info("Config reloaded")
		app.Config = reloaded
		for _, cb := range app.configCallbacks {
			cb(reloaded)
		}
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 关闭在线考试会话，未完成答卷由下次启动的清扫兜底
	if a.services != nil && a.services.sessionHub != nil {
		a.services.sessionHub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
