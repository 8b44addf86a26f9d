package models

import "time"

// 提交来源
const (
	SourceDirect = "direct" // 原始消息直接保存
	SourceForm   = "form"   // 按 "字段: 值" 解析出的表单
)

// DirectMessageKey 直接消息在 FormData 中使用的键
const DirectMessageKey = "mensagem"

// Submission 一条已处理的入站消息记录
type Submission struct {
	ID               string     `bson:"_id" json:"id"`
	ConfigID         string     `bson:"config_id" json:"configId"`
	From             string     `bson:"from" json:"from"`
	FromName         string     `bson:"from_name,omitempty" json:"fromName,omitempty"`
	Source           string     `bson:"source" json:"source"`
	FormData         FormData   `bson:"form_data" json:"formData"`
	SubmittedAt      time.Time  `bson:"submitted_at" json:"submittedAt"`
	ForwardedToGroup bool       `bson:"forwarded_to_group" json:"forwardedToGroup"`
	ForwardedAt      *time.Time `bson:"forwarded_at,omitempty" json:"forwardedAt,omitempty"`
}

// MarkForwarded 记录转发成功
// ForwardedAt 与 ForwardedToGroup 总是同时设置
func (s *Submission) MarkForwarded(at time.Time) {
	s.ForwardedToGroup = true
	s.ForwardedAt = &at
}

// IsDirect 是否为直接消息
func (s *Submission) IsDirect() bool {
	return s.Source != SourceForm
}

// Clone 返回副本
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	cp := *s
	cp.FormData = append(FormData(nil), s.FormData...)
	if s.ForwardedAt != nil {
		at := *s.ForwardedAt
		cp.ForwardedAt = &at
	}
	return &cp
}
