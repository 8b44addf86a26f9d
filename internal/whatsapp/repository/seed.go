package repository

import (
	"context"
	"fmt"
	"time"

	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/models"

	"github.com/google/uuid"
)

// DefaultConfigName 默认配置名称
const DefaultConfigName = "Bot Padrão"

// SeedDefaultConfig 在没有任何配置时写入一条激活的默认配置
// 返回是否实际写入
func SeedDefaultConfig(ctx context.Context, repo BotConfigRepository, greeting, formMessage string) (bool, error) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list bot configs: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	now := time.Now()
	cfg := &models.BotConfig{
		ID:              uuid.NewString(),
		Name:            DefaultConfigName,
		GreetingMessage: greeting,
		FormMessage:     formMessage,
		FormFields:      models.DefaultFormFields(),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repo.Create(ctx, cfg); err != nil {
		return false, err
	}

	logger.L().Infof("Seeded default bot config: id=%s", cfg.ID)
	return true, nil
}
