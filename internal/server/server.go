package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go_wabot/internal/config"
	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/bot"
	"go_wabot/internal/whatsapp/cleanup"
	"go_wabot/internal/whatsapp/dedupe"
	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// MessageHandler 入站消息处理流程
type MessageHandler interface {
	Handle(ctx context.Context, msg *models.InboundMessage)
}

// TaskSubmitter 异步任务投递
type TaskSubmitter interface {
	Submit(task bot.Task) bool
	Stats() bot.PoolStats
}

// CleanupController 清理器对外暴露的操作
type CleanupController interface {
	ManualCleanup(ctx context.Context) cleanup.Result
	NextCleanupInfo() cleanup.NextInfo
}

// SessionGateway 管理接口使用的网关操作
type SessionGateway interface {
	GetSessionStatus(ctx context.Context) (*gateway.Session, error)
	CreateSession(ctx context.Context) (*gateway.Session, error)
	GetSessions(ctx context.Context) ([]gateway.Session, error)
	DeleteSession(ctx context.Context) error
	RestartSession(ctx context.Context) error
	GetQRCode(ctx context.Context) (string, error)
	GetChats(ctx context.Context) (json.RawMessage, error)
	GetGroups(ctx context.Context) (json.RawMessage, error)
	ConfigureWebhook(ctx context.Context, webhookURL string) (json.RawMessage, error)
	CheckNumber(ctx context.Context, phone string) (*gateway.NumberStatus, error)
	ForwardMessage(ctx context.Context, targetChatID, messageID string) error
}

// Deps 服务器依赖
type Deps struct {
	Pipeline    MessageHandler
	Pool        TaskSubmitter
	Guard       dedupe.Guard // 为空时不去重
	Submissions *service.SubmissionService
	Cleanup     CleanupController
	Gateway     SessionGateway
	StoragePing func(ctx context.Context) error // 为空时视为正常
}

// Server HTTP 服务（webhook + 管理接口）
type Server struct {
	cfg     *config.Config
	deps    Deps
	engine  *gin.Engine
	started time.Time

	// baseCtx 异步任务使用的上下文，不随请求结束而取消
	baseCtx context.Context
}

// New 创建服务器并注册路由
func New(baseCtx context.Context, cfg *config.Config, deps Deps) *Server {
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		engine:  gin.New(),
		started: time.Now(),
		baseCtx: baseCtx,
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apiResponse{Success: false, Error: "Not found"})
	})

	webhook := s.engine.Group("/webhook")
	{
		webhook.POST("", verifyHMAC(s.cfg.WAHA.WebhookHMACKey), s.handleWebhook)
		webhook.GET("/test", s.handleWebhookTest)
	}

	api := s.engine.Group("/api", apiKeyAuth(s.cfg.APIKey))
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stats", s.handleStats)
		api.GET("/submissions", s.handleListSubmissions)
		api.GET("/submissions/:id", s.handleGetSubmission)
		api.POST("/cleanup", s.handleManualCleanup)
		api.GET("/cleanup/next", s.handleNextCleanup)

		waha := api.Group("/waha")
		waha.GET("/status", s.handleSessionStatus)
		waha.GET("/qr", s.handleQRCode)
		waha.GET("/chats", s.handleChats)
		waha.GET("/groups", s.handleGroups)
		waha.GET("/sessions", s.handleSessions)
		waha.POST("/session", s.handleCreateSession)
		waha.DELETE("/session", s.handleDeleteSession)
		waha.POST("/session/restart", s.handleRestartSession)
		waha.POST("/webhook", s.handleConfigureWebhook)
		waha.GET("/check-number/:phone", s.handleCheckNumber)
		waha.POST("/forward", s.handleForwardMessage)
	}
}

// ServeHTTP 实现 http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.engine.ServeHTTP(w, req)
}

// Run 监听端口直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	logger.L().Info("HTTP server stopped")
	return nil
}

// apiResponse 统一响应结构
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Total   *int        `json:"total,omitempty"`
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", apiKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
