package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go_wabot/internal/whatsapp/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// submissionRow form_submissions 表的行结构
// form_data 使用 json 而非 jsonb 列，保留字段顺序
type submissionRow struct {
	ID               string         `gorm:"primaryKey;type:varchar(64)"`
	ConfigID         string         `gorm:"index;type:varchar(64)"`
	FromNumber       string         `gorm:"index;type:varchar(128)"`
	FromName         string         `gorm:"type:varchar(255)"`
	Source           string         `gorm:"type:varchar(16)"`
	FormData         datatypes.JSON `gorm:"type:json"`
	SubmittedAt      time.Time      `gorm:"index"`
	ForwardedToGroup bool           `gorm:"not null;default:false"`
	ForwardedAt      *time.Time
}

func (submissionRow) TableName() string { return "form_submissions" }

func newSubmissionRow(s *models.Submission) (*submissionRow, error) {
	data, err := json.Marshal(s.FormData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}
	return &submissionRow{
		ID:               s.ID,
		ConfigID:         s.ConfigID,
		FromNumber:       s.From,
		FromName:         s.FromName,
		Source:           s.Source,
		FormData:         datatypes.JSON(data),
		SubmittedAt:      s.SubmittedAt,
		ForwardedToGroup: s.ForwardedToGroup,
		ForwardedAt:      s.ForwardedAt,
	}, nil
}

func (row *submissionRow) toModel() (*models.Submission, error) {
	s := &models.Submission{
		ID:               row.ID,
		ConfigID:         row.ConfigID,
		From:             row.FromNumber,
		FromName:         row.FromName,
		Source:           row.Source,
		SubmittedAt:      row.SubmittedAt,
		ForwardedToGroup: row.ForwardedToGroup,
		ForwardedAt:      row.ForwardedAt,
	}
	if len(row.FormData) > 0 {
		if err := json.Unmarshal(row.FormData, &s.FormData); err != nil {
			return nil, fmt.Errorf("failed to decode form data for %s: %w", row.ID, err)
		}
	}
	return s, nil
}

// PostgresSubmissionRepository 提交记录数据访问层（PostgreSQL 实现）
type PostgresSubmissionRepository struct {
	db *gorm.DB
}

// NewPostgresSubmissionRepository 创建提交记录 Repository
func NewPostgresSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &PostgresSubmissionRepository{db: db}
}

// Create 保存新的提交记录
func (r *PostgresSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	row, err := newSubmissionRow(submission)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取提交记录
func (r *PostgresSubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	var row submissionRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%s", ErrSubmissionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return row.toModel()
}

// GetAll 按提交时间倒序列出所有记录
func (r *PostgresSubmissionRepository) GetAll(ctx context.Context) ([]*models.Submission, error) {
	return r.find(r.db.WithContext(ctx))
}

// GetByConfigID 列出某个配置产生的记录
func (r *PostgresSubmissionRepository) GetByConfigID(ctx context.Context, configID string) ([]*models.Submission, error) {
	return r.find(r.db.WithContext(ctx).Where("config_id = ?", configID))
}

// GetByFrom 列出某个发送者的记录
func (r *PostgresSubmissionRepository) GetByFrom(ctx context.Context, from string) ([]*models.Submission, error) {
	return r.find(r.db.WithContext(ctx).Where("from_number = ?", from))
}

func (r *PostgresSubmissionRepository) find(query *gorm.DB) ([]*models.Submission, error) {
	var rows []submissionRow
	if err := query.Order("submitted_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	submissions := make([]*models.Submission, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, nil
}

// UpdateForwardOutcome 记录转发成功
func (r *PostgresSubmissionRepository) UpdateForwardOutcome(ctx context.Context, id string, forwardedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&submissionRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"forwarded_to_group": true,
			"forwarded_at":       forwardedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update forward outcome: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%s", ErrSubmissionNotFound, id)
	}
	return nil
}

// DeleteAll 删除全部记录
func (r *PostgresSubmissionRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&submissionRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete submissions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EnsureIndexes 自动迁移表结构和索引
func (r *PostgresSubmissionRepository) EnsureIndexes(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&submissionRow{}); err != nil {
		return fmt.Errorf("failed to migrate form_submissions: %w", err)
	}
	return nil
}
