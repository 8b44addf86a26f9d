package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

// 网关会话状态
const (
	SessionStopped    = "STOPPED"
	SessionStarting   = "STARTING"
	SessionScanQRCode = "SCAN_QR_CODE"
	SessionWorking    = "WORKING"
	SessionFailed     = "FAILED"
)

// SessionMe 会话绑定的账号
type SessionMe struct {
	ID       string `json:"id"`
	PushName string `json:"pushName,omitempty"`
}

// Session 网关会话信息
type Session struct {
	Name   string     `json:"name"`
	Status string     `json:"status"`
	Me     *SessionMe `json:"me,omitempty"`
}

// IsWorking 会话是否已连接
func (s *Session) IsWorking() bool {
	return s != nil && s.Status == SessionWorking
}

// GetSessionStatus 查询当前会话状态
func (c *Client) GetSessionStatus(ctx context.Context) (*Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/api/sessions/%s/status"), nil, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateSession 创建会话（NOWEB 引擎，开启本地存储）
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	payload := map[string]interface{}{
		"name": c.sessionName,
		"config": map[string]interface{}{
			"noweb": map[string]interface{}{
				"store": map[string]interface{}{
					"enabled":  true,
					"fullSync": false,
				},
				"markOnline": true,
			},
		},
	}

	var session Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSessions 列出网关上的全部会话
func (c *Client) GetSessions(ctx context.Context) ([]Session, error) {
	sessions := make([]Session, 0)
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession 删除当前会话
func (c *Client) DeleteSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.sessionPath("/api/sessions/%s"), nil, nil, nil)
}

// RestartSession 重启当前会话
func (c *Client) RestartSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.sessionPath("/api/sessions/%s/restart"), nil, nil, nil)
}

// GetQRCode 获取登录二维码的原始内容
func (c *Client) GetQRCode(ctx context.Context) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	path := c.sessionPath("/api/%s/auth/qr")
	if err := c.do(ctx, http.MethodGet, path, map[string][]string{"format": {"raw"}}, nil, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// ConfigureWebhook 注册 webhook 地址
func (c *Client) ConfigureWebhook(ctx context.Context, webhookURL string) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"url":             webhookURL,
		"events":          []string{"message", "message.ack", "session.status"},
		"webhookByEvents": true,
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/api/%s/webhooks"), nil, payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
