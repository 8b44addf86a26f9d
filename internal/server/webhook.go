package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/bot"
	"go_wabot/internal/whatsapp/models"

	"github.com/gin-gonic/gin"
)

// handleWebhook 解析成功即返回 200，处理在工作池中异步进行
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "failed to read body"})
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.L().Warnf("Webhook payload rejected: %v", err)
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid payload"})
		return
	}

	if !payload.IsMessage() {
		logger.L().Debugf("Webhook event ignored: event=%s, session=%s", payload.Event, payload.Session)
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Evento ignorado"})
		return
	}

	msg, err := payload.Message()
	if err != nil {
		logger.L().Warnf("Webhook message rejected: %v", err)
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid message payload"})
		return
	}

	guarded := false
	if s.deps.Guard != nil && !msg.FromMe {
		first, err := s.deps.Guard.FirstSeen(c.Request.Context(), msg.ID)
		if err != nil {
			logger.L().Warnf("Webhook dedupe unavailable, processing anyway: id=%s, error=%v", msg.ID, err)
		} else if !first {
			logger.L().Infof("Duplicate webhook delivery ignored: id=%s", msg.ID)
			c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Mensagem já processada"})
			return
		} else {
			guarded = true
		}
	}

	task := bot.Task{
		Name: "message:" + msg.ID,
		Ctx:  s.baseCtx,
		Run: func(ctx context.Context) {
			s.deps.Pipeline.Handle(ctx, msg)
		},
	}
	if !s.deps.Pool.Submit(task) {
		logger.L().Errorf("Webhook message dropped: id=%s, from=%s", msg.ID, msg.From)
		// 释放去重记录，网关重投时可以再次处理
		if guarded {
			if err := s.deps.Guard.Forget(c.Request.Context(), msg.ID); err != nil {
				logger.L().Warnf("Failed to release dedupe record: id=%s, error=%v", msg.ID, err)
			}
		}
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Webhook processado com sucesso"})
}

func (s *Server) handleWebhookTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Webhook endpoint funcionando",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
