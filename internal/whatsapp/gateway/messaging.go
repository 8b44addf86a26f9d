package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// 聊天 ID 后缀
const (
	UserSuffix  = "@c.us"
	GroupSuffix = "@g.us"
)

// Button 按钮消息中的一个按钮
type Button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SendText 发送文本消息
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"session": c.sessionName,
		"chatId":  chatID,
		"text":    text,
	}
	return c.do(ctx, http.MethodPost, "/api/sendText", nil, payload, nil)
}

// SendButtons 发送带按钮的消息
func (c *Client) SendButtons(ctx context.Context, chatID, text string, buttons []Button) error {
	payload := map[string]interface{}{
		"session": c.sessionName,
		"chatId":  chatID,
		"text":    text,
		"buttons": buttons,
	}
	return c.do(ctx, http.MethodPost, "/api/sendButtons", nil, payload, nil)
}

// ForwardMessage 将已有消息转发到目标会话
func (c *Client) ForwardMessage(ctx context.Context, targetChatID, messageID string) error {
	payload := map[string]interface{}{
		"session":   c.sessionName,
		"chatId":    targetChatID,
		"messageId": messageID,
	}
	return c.do(ctx, http.MethodPost, "/api/forwardMessage", nil, payload, nil)
}

// StartTyping 显示"正在输入"
func (c *Client) StartTyping(ctx context.Context, chatID string) error {
	return c.typing(ctx, "/api/startTyping", chatID)
}

// StopTyping 取消"正在输入"
func (c *Client) StopTyping(ctx context.Context, chatID string) error {
	return c.typing(ctx, "/api/stopTyping", chatID)
}

func (c *Client) typing(ctx context.Context, path, chatID string) error {
	payload := map[string]interface{}{
		"session": c.sessionName,
		"chatId":  chatID,
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, nil)
}

// NumberStatus 号码检查结果
type NumberStatus struct {
	NumberExists bool   `json:"numberExists"`
	ChatID       string `json:"chatId,omitempty"`
}

// CheckNumber 检查号码是否注册了 WhatsApp
func (c *Client) CheckNumber(ctx context.Context, phone string) (*NumberStatus, error) {
	query := url.Values{}
	query.Set("session", c.sessionName)
	query.Set("phone", phone)

	var status NumberStatus
	if err := c.do(ctx, http.MethodGet, "/api/checkNumber", query, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetChats 列出会话中的聊天（原样返回网关数据）
func (c *Client) GetChats(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/api/%s/chats"), nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetGroups 列出会话加入的群组（原样返回网关数据）
func (c *Client) GetGroups(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/api/%s/groups"), nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// StripChatSuffix 去掉 "@c.us" / "@g.us" 后缀，得到可读号码
func StripChatSuffix(chatID string) string {
	chatID = strings.TrimSuffix(chatID, UserSuffix)
	return strings.TrimSuffix(chatID, GroupSuffix)
}

// IsGroupChat 是否为群聊 ID
func IsGroupChat(chatID string) bool {
	return strings.HasSuffix(chatID, GroupSuffix)
}
