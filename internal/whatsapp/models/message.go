package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventMessage 触发处理流程的 webhook 事件类型
const EventMessage = "message"

// InboundMessage 网关推送的入站消息
type InboundMessage struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	Type       string `json:"type,omitempty"`
	Timestamp  int64  `json:"timestamp"` // Unix 秒
	From       string `json:"from"`
	FromMe     bool   `json:"fromMe"`
	ChatID     string `json:"chatId,omitempty"`
	NotifyName string `json:"notifyName,omitempty"`
}

// SentAt 返回消息发送时间
func (m *InboundMessage) SentAt() time.Time {
	if m.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(m.Timestamp, 0)
}

// WebhookPayload webhook 请求体
// Payload 的结构随事件类型变化，只有 message 事件才解析为 InboundMessage
type WebhookPayload struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

// IsMessage 是否为需要处理的消息事件
func (p *WebhookPayload) IsMessage() bool {
	return p != nil && p.Event == EventMessage && len(p.Payload) > 0 && string(p.Payload) != "null"
}

// Message 将 payload 解析为入站消息，仅对 message 事件有效
func (p *WebhookPayload) Message() (*InboundMessage, error) {
	if !p.IsMessage() {
		return nil, fmt.Errorf("event %q carries no message", p.Event)
	}
	var msg InboundMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message payload: %w", err)
	}
	return &msg, nil
}
