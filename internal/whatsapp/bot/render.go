package bot

import (
	"fmt"
	"strings"
	"time"

	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"
)

// RenderGroupMessage 生成转发到群组的消息
// 表单字段的标签取自当前配置，找不到定义时使用原始键名
func RenderGroupMessage(submission *models.Submission, cfg *models.BotConfig, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var sb strings.Builder
	sb.WriteString(groupHeader)
	fmt.Fprintf(&sb, groupFromLine, gateway.StripChatSuffix(submission.From))
	fmt.Fprintf(&sb, groupDateLine, submission.SubmittedAt.In(loc).Format(timestampLayout))

	if submission.IsDirect() {
		body, _ := submission.FormData.Get(models.DirectMessageKey)
		sb.WriteString(groupMessageHead)
		sb.WriteString(body)
		return sb.String()
	}

	sb.WriteString(groupFormHead)
	for _, entry := range submission.FormData {
		label := entry.Key
		if field, ok := cfg.FieldByID(entry.Key); ok && field.Label != "" {
			label = field.Label
		}
		fmt.Fprintf(&sb, groupFormLine, label, entry.Value)
	}
	return sb.String()
}
