package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/repository"
	"go_wabot/internal/whatsapp/service"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	data := gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
		"storage":   s.cfg.StorageDriver,
	}
	if s.deps.Pool != nil {
		data["workers"] = s.deps.Pool.Stats()
	}

	if s.deps.StoragePing != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.StoragePing(ctx); err != nil {
			data["storageError"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, apiResponse{Success: false, Data: data, Error: "storage unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Sistema funcionando corretamente", Data: data})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.deps.Submissions.Stats(c.Request.Context())
	if err != nil {
		logger.L().Errorf("Failed to compute stats: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "Erro ao obter estatísticas"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: stats})
}

func (s *Server) handleListSubmissions(c *gin.Context) {
	filter, err := parseSearchFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: err.Error()})
		return
	}

	items, total, err := s.deps.Submissions.Search(c.Request.Context(), filter)
	if err != nil {
		logger.L().Errorf("Failed to list submissions: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "Erro ao obter submissões"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: items, Total: &total})
}

func (s *Server) handleGetSubmission(c *gin.Context) {
	item, err := s.deps.Submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, apiResponse{Success: false, Error: "Submissão não encontrada"})
			return
		}
		logger.L().Errorf("Failed to get submission: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "Erro ao obter submissão"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: item})
}

func (s *Server) handleManualCleanup(c *gin.Context) {
	result := s.deps.Cleanup.ManualCleanup(c.Request.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, apiResponse{Success: result.Success, Data: result, Message: result.Message})
}

func (s *Server) handleNextCleanup(c *gin.Context) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: s.deps.Cleanup.NextCleanupInfo()})
}

func (s *Server) handleSessionStatus(c *gin.Context) {
	session, err := s.deps.Gateway.GetSessionStatus(c.Request.Context())
	s.respondGateway(c, session, err, "Erro ao obter status do WAHA")
}

func (s *Server) handleQRCode(c *gin.Context) {
	qr, err := s.deps.Gateway.GetQRCode(c.Request.Context())
	s.respondGateway(c, gin.H{"qrCode": qr}, err, "Erro ao obter QR Code")
}

func (s *Server) handleChats(c *gin.Context) {
	chats, err := s.deps.Gateway.GetChats(c.Request.Context())
	s.respondGateway(c, chats, err, "Erro ao obter chats")
}

func (s *Server) handleGroups(c *gin.Context) {
	groups, err := s.deps.Gateway.GetGroups(c.Request.Context())
	s.respondGateway(c, groups, err, "Erro ao obter grupos")
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.deps.Gateway.GetSessions(c.Request.Context())
	s.respondGateway(c, sessions, err, "Erro ao obter sessões")
}

func (s *Server) handleCreateSession(c *gin.Context) {
	session, err := s.deps.Gateway.CreateSession(c.Request.Context())
	if err != nil {
		s.respondGateway(c, nil, err, "Erro ao criar sessão WAHA")
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Success: true, Data: session, Message: "Sessão criada com sucesso"})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	err := s.deps.Gateway.DeleteSession(c.Request.Context())
	s.respondGateway(c, nil, err, "Erro ao deletar sessão")
}

func (s *Server) handleRestartSession(c *gin.Context) {
	err := s.deps.Gateway.RestartSession(c.Request.Context())
	s.respondGateway(c, nil, err, "Erro ao reiniciar sessão")
}

func (s *Server) handleConfigureWebhook(c *gin.Context) {
	var req struct {
		WebhookURL string `json:"webhookUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.WebhookURL) == "" {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "webhookUrl é obrigatório"})
		return
	}

	result, err := s.deps.Gateway.ConfigureWebhook(c.Request.Context(), strings.TrimSpace(req.WebhookURL))
	s.respondGateway(c, result, err, "Erro ao configurar webhook")
}

func (s *Server) handleCheckNumber(c *gin.Context) {
	phone := strings.TrimSpace(c.Param("phone"))
	status, err := s.deps.Gateway.CheckNumber(c.Request.Context(), phone)
	s.respondGateway(c, status, err, "Erro ao verificar número")
}

// handleForwardMessage 把会话中的已有消息转发到指定聊天（例如补发转发失败的提交）
func (s *Server) handleForwardMessage(c *gin.Context) {
	var req struct {
		ChatID    string `json:"chatId"`
		MessageID string `json:"messageId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.MessageID) == "" {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "chatId e messageId são obrigatórios"})
		return
	}

	err := s.deps.Gateway.ForwardMessage(c.Request.Context(), strings.TrimSpace(req.ChatID), strings.TrimSpace(req.MessageID))
	s.respondGateway(c, nil, err, "Erro ao encaminhar mensagem")
}

// respondGateway 网关错误返回 502，404 原样透传，细节只写日志
func (s *Server) respondGateway(c *gin.Context, data interface{}, err error, message string) {
	if err == nil {
		c.JSON(http.StatusOK, apiResponse{Success: true, Data: data})
		return
	}

	logger.L().Errorf("%s: %v", message, err)
	status := http.StatusBadGateway
	if gateway.IsNotFound(err) {
		status = http.StatusNotFound
	}
	c.JSON(status, apiResponse{Success: false, Error: message})
}

func parseSearchFilter(c *gin.Context) (service.SearchFilter, error) {
	filter := service.SearchFilter{
		From:     strings.TrimSpace(c.Query("from")),
		ConfigID: strings.TrimSpace(c.Query("configId")),
		Query:    strings.TrimSpace(c.Query("q")),
	}

	if v := c.Query("forwarded"); v != "" {
		forwarded, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("forwarded must be true or false")
		}
		filter.Forwarded = &forwarded
	}

	for key, target := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		if v := c.Query(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, errors.New(key + " must be an RFC3339 timestamp")
			}
			*target = t
		}
	}

	for key, target := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := c.Query(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return filter, errors.New(key + " must be a non-negative integer")
			}
			*target = n
		}
	}
	return filter, nil
}
