package repository

import (
	"context"
	"errors"
	"time"

	"go_wabot/internal/whatsapp/models"
)

var (
	// ErrSubmissionNotFound 提交记录不存在
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrConfigNotFound 机器人配置不存在
	ErrConfigNotFound = errors.New("bot config not found")
)

// SubmissionRepository 提交记录数据访问接口
type SubmissionRepository interface {
	// Create 保存新的提交记录
	Create(ctx context.Context, submission *models.Submission) error

	// GetByID 根据 ID 获取提交记录
	GetByID(ctx context.Context, id string) (*models.Submission, error)

	// GetAll 按提交时间倒序列出所有记录
	GetAll(ctx context.Context) ([]*models.Submission, error)

	// GetByConfigID 列出某个配置产生的记录
	GetByConfigID(ctx context.Context, configID string) ([]*models.Submission, error)

	// GetByFrom 列出某个发送者的记录
	GetByFrom(ctx context.Context, from string) ([]*models.Submission, error)

	// UpdateForwardOutcome 记录转发结果（仅在转发成功后调用）
	UpdateForwardOutcome(ctx context.Context, id string, forwardedAt time.Time) error

	// DeleteAll 删除全部记录，返回删除数量
	DeleteAll(ctx context.Context) (int64, error)

	// EnsureIndexes 确保索引/表结构存在
	EnsureIndexes(ctx context.Context) error
}

// ConfigProvider 提供当前激活的机器人配置
type ConfigProvider interface {
	// GetActiveConfig 没有激活配置时返回 (nil, nil)
	GetActiveConfig(ctx context.Context) (*models.BotConfig, error)
}

// BotConfigRepository 机器人配置数据访问接口
type BotConfigRepository interface {
	ConfigProvider

	// Create 创建配置
	Create(ctx context.Context, cfg *models.BotConfig) error

	// GetByID 根据 ID 获取配置
	GetByID(ctx context.Context, id string) (*models.BotConfig, error)

	// GetAll 按创建时间倒序列出全部配置
	GetAll(ctx context.Context) ([]*models.BotConfig, error)

	// SetActive 激活指定配置并停用其余配置
	SetActive(ctx context.Context, id string) error

	// DeleteAll 删除全部配置，返回删除数量
	DeleteAll(ctx context.Context) (int64, error)

	// EnsureIndexes 确保索引/表结构存在
	EnsureIndexes(ctx context.Context) error
}
