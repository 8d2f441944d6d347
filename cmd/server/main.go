package main

import (
	"log"

	"github.com/Hylozoic/hylo-sub001/internal/config"
	"github.com/Hylozoic/hylo-sub001/internal/logger"
	"github.com/Hylozoic/hylo-sub001/internal/notify"
	"github.com/Hylozoic/hylo-sub001/internal/repository"
	"github.com/Hylozoic/hylo-sub001/internal/router"
	"github.com/Hylozoic/hylo-sub001/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	if err := logger.Setup(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化通知器
	notifier, err := notify.New(db, cfg.Notify.PoolSize)
	if err != nil {
		logger.Fatal("Failed to initialize notifier: %v", err)
	}
	defer notifier.Close()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, notifier, cfg)

	// 启动定时任务
	manager := scheduler.Start(db, notifier, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
