package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go_wabot/internal/whatsapp/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type botConfigRow struct {
	ID              string                                 `gorm:"primaryKey;type:varchar(64)"`
	Name            string                                 `gorm:"type:varchar(255)"`
	GreetingMessage string                                 `gorm:"type:text"`
	FormMessage     string                                 `gorm:"type:text"`
	FormFields      datatypes.JSONType[[]models.FormField] `gorm:"type:jsonb"`
	TargetGroupID   string                                 `gorm:"type:varchar(128)"`
	TargetGroupName string                                 `gorm:"type:varchar(255)"`
	IsActive        bool                                   `gorm:"index;not null;default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (botConfigRow) TableName() string { return "bot_configs" }

func newBotConfigRow(c *models.BotConfig) *botConfigRow {
	return &botConfigRow{
		ID:              c.ID,
		Name:            c.Name,
		GreetingMessage: c.GreetingMessage,
		FormMessage:     c.FormMessage,
		FormFields:      datatypes.NewJSONType(c.FormFields),
		TargetGroupID:   c.TargetGroupID,
		TargetGroupName: c.TargetGroupName,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (row *botConfigRow) toModel() *models.BotConfig {
	return &models.BotConfig{
		ID:              row.ID,
		Name:            row.Name,
		GreetingMessage: row.GreetingMessage,
		FormMessage:     row.FormMessage,
		FormFields:      row.FormFields.Data(),
		TargetGroupID:   row.TargetGroupID,
		TargetGroupName: row.TargetGroupName,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

// PostgresBotConfigRepository 机器人配置数据访问层（PostgreSQL 实现）
type PostgresBotConfigRepository struct {
	db *gorm.DB
}

// NewPostgresBotConfigRepository 创建配置 Repository
func NewPostgresBotConfigRepository(db *gorm.DB) BotConfigRepository {
	return &PostgresBotConfigRepository{db: db}
}

// Create 创建配置
func (r *PostgresBotConfigRepository) Create(ctx context.Context, cfg *models.BotConfig) error {
	if err := r.db.WithContext(ctx).Create(newBotConfigRow(cfg)).Error; err != nil {
		return fmt.Errorf("failed to create bot config: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取配置
func (r *PostgresBotConfigRepository) GetByID(ctx context.Context, id string) (*models.BotConfig, error) {
	var row botConfigRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%s", ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("failed to get bot config: %w", err)
	}
	return row.toModel(), nil
}

// GetAll 按创建时间倒序列出全部配置
func (r *PostgresBotConfigRepository) GetAll(ctx context.Context) ([]*models.BotConfig, error) {
	var rows []botConfigRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query bot configs: %w", err)
	}

	configs := make([]*models.BotConfig, 0, len(rows))
	for i := range rows {
		configs = append(configs, rows[i].toModel())
	}
	return configs, nil
}

// GetActiveConfig 返回激活的配置，没有时返回 (nil, nil)
func (r *PostgresBotConfigRepository) GetActiveConfig(ctx context.Context) (*models.BotConfig, error) {
	var row botConfigRow
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active bot config: %w", err)
	}
	return row.toModel(), nil
}

// SetActive 在事务中激活指定配置并停用其余配置
func (r *PostgresBotConfigRepository) SetActive(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&botConfigRow{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_active": true, "updated_at": now})
		if result.Error != nil {
			return fmt.Errorf("failed to activate bot config: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: id=%s", ErrConfigNotFound, id)
		}

		err := tx.Model(&botConfigRow{}).
			Where("id <> ? AND is_active = ?", id, true).
			Updates(map[string]any{"is_active": false, "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate other bot configs: %w", err)
		}
		return nil
	})
}

// DeleteAll 删除全部配置
func (r *PostgresBotConfigRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&botConfigRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete bot configs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EnsureIndexes 自动迁移表结构和索引
func (r *PostgresBotConfigRepository) EnsureIndexes(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&botConfigRow{}); err != nil {
		return fmt.Errorf("failed to migrate bot_configs: %w", err)
	}
	return nil
}
