package bot

import (
	"context"
	"time"

	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"
)

// TextSender 发送文本消息的能力
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// Forwarder 将提交记录转发到目标群组
// 每条记录最多尝试一次，失败不重试
type Forwarder struct {
	sender   TextSender
	store    repository.SubmissionRepository
	location *time.Location
	nowFunc  func() time.Time
}

// NewForwarder 创建转发器
func NewForwarder(sender TextSender, store repository.SubmissionRepository, loc *time.Location) *Forwarder {
	if loc == nil {
		loc = time.Local
	}
	return &Forwarder{
		sender:   sender,
		store:    store,
		location: loc,
		nowFunc:  time.Now,
	}
}

// Forward 渲染并发送到 cfg.TargetGroupID
// 发送成功时更新记录的转发状态并返回 true
func (f *Forwarder) Forward(ctx context.Context, submission *models.Submission, cfg *models.BotConfig) bool {
	if !cfg.HasTargetGroup() {
		return false
	}

	text := RenderGroupMessage(submission, cfg, f.location)
	if err := f.sender.SendText(ctx, cfg.TargetGroupID, text); err != nil {
		logger.L().Errorf("Forward to group failed: submission=%s, group=%s, error=%v",
			submission.ID, cfg.TargetGroupID, err)
		return false
	}

	forwardedAt := f.nowFunc()
	if forwardedAt.Before(submission.SubmittedAt) {
		forwardedAt = submission.SubmittedAt
	}
	submission.MarkForwarded(forwardedAt)

	if err := f.store.UpdateForwardOutcome(ctx, submission.ID, forwardedAt); err != nil {
		logger.L().Errorf("Failed to record forward outcome: submission=%s, error=%v", submission.ID, err)
	}

	logger.L().Infof("Submission forwarded: submission=%s, group=%s", submission.ID, cfg.TargetGroupID)
	return true
}
