package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go_wabot/internal/app"
	"go_wabot/internal/config"
	"go_wabot/internal/logger"
)

func main() {
	// 初始化logger
	logger.Init()
	defer logger.Close()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("配置加载失败: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)
	if runErr != nil {
		logger.L().Errorf("Application stopped with error: %v", runErr)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Close(closeCtx); err != nil {
		logger.L().Errorf("Application shutdown failed: %v", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
	logger.L().Info("Application stopped")
}
