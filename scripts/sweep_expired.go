// 手动触发超时答卷清扫脚本
//
// 该功能已集成到主应用的后台定时任务中（默认每 30 秒执行一次）。
// 此脚本仅用于手动触发，例如服务长时间停机后补扫遗留的未完成答卷。
//
// 用法: go run scripts/sweep_expired.go

package main

import (
	"log"
	"time"

	"exam_hub_backend/internal/config"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/internal/service"
	"exam_hub_backend/pkg/database"
	"exam_hub_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	attempts := service.NewAttemptService(
		repository.NewAttemptRepository(db),
		repository.NewAnswerRepository(db),
		repository.NewExamRepository(db),
		repository.NewQuestionRepository(db),
		db,
	)

	n := attempts.CompleteExpired(time.Now())
	log.Printf("清扫完成，强制交卷 %d 份", n)
}
