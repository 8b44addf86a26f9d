package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go_wabot/internal/whatsapp/models"
)

// MemorySubmissionRepository 进程内提交记录存储
// 未配置持久化时使用，进程退出后数据丢失
type MemorySubmissionRepository struct {
	mu    sync.RWMutex
	items map[string]*models.Submission
}

// NewMemorySubmissionRepository 创建内存提交记录存储
func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{items: make(map[string]*models.Submission)}
}

// Create 保存新的提交记录
func (r *MemorySubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission == nil || submission.ID == "" {
		return fmt.Errorf("failed to create submission: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[submission.ID]; exists {
		return fmt.Errorf("failed to create submission: duplicate id %s", submission.ID)
	}
	r.items[submission.ID] = submission.Clone()
	return nil
}

// GetByID 根据 ID 获取提交记录
func (r *MemorySubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrSubmissionNotFound, id)
	}
	return item.Clone(), nil
}

// GetAll 按提交时间倒序列出所有记录
func (r *MemorySubmissionRepository) GetAll(ctx context.Context) ([]*models.Submission, error) {
	return r.filter(func(*models.Submission) bool { return true }), nil
}

// GetByConfigID 列出某个配置产生的记录
func (r *MemorySubmissionRepository) GetByConfigID(ctx context.Context, configID string) ([]*models.Submission, error) {
	return r.filter(func(s *models.Submission) bool { return s.ConfigID == configID }), nil
}

// GetByFrom 列出某个发送者的记录
func (r *MemorySubmissionRepository) GetByFrom(ctx context.Context, from string) ([]*models.Submission, error) {
	return r.filter(func(s *models.Submission) bool { return s.From == from }), nil
}

// UpdateForwardOutcome 记录转发成功
func (r *MemorySubmissionRepository) UpdateForwardOutcome(ctx context.Context, id string, forwardedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: id=%s", ErrSubmissionNotFound, id)
	}
	item.MarkForwarded(forwardedAt)
	return nil
}

// DeleteAll 删除全部记录
func (r *MemorySubmissionRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := int64(len(r.items))
	r.items = make(map[string]*models.Submission)
	return count, nil
}

// EnsureIndexes 内存实现无需索引
func (r *MemorySubmissionRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (r *MemorySubmissionRepository) filter(keep func(*models.Submission) bool) []*models.Submission {
	r.mu.RLock()
	result := make([]*models.Submission, 0, len(r.items))
	for _, item := range r.items {
		if keep(item) {
			result = append(result, item.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result
}

// MemoryBotConfigRepository 进程内机器人配置存储
type MemoryBotConfigRepository struct {
	mu    sync.RWMutex
	items map[string]*models.BotConfig
}

// NewMemoryBotConfigRepository 创建内存配置存储
func NewMemoryBotConfigRepository() *MemoryBotConfigRepository {
	return &MemoryBotConfigRepository{items: make(map[string]*models.BotConfig)}
}

// Create 创建配置
func (r *MemoryBotConfigRepository) Create(ctx context.Context, cfg *models.BotConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("failed to create bot config: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[cfg.ID]; exists {
		return fmt.Errorf("failed to create bot config: duplicate id %s", cfg.ID)
	}
	r.items[cfg.ID] = cfg.Clone()
	return nil
}

// GetByID 根据 ID 获取配置
func (r *MemoryBotConfigRepository) GetByID(ctx context.Context, id string) (*models.BotConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrConfigNotFound, id)
	}
	return item.Clone(), nil
}

// GetAll 按创建时间倒序列出全部配置
func (r *MemoryBotConfigRepository) GetAll(ctx context.Context) ([]*models.BotConfig, error) {
	r.mu.RLock()
	result := make([]*models.BotConfig, 0, len(r.items))
	for _, item := range r.items {
		result = append(result, item.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// GetActiveConfig 返回激活的配置快照
func (r *MemoryBotConfigRepository) GetActiveConfig(ctx context.Context) (*models.BotConfig, error) {
	all, _ := r.GetAll(ctx)
	for _, cfg := range all {
		if cfg.IsActive {
			return cfg, nil
		}
	}
	return nil, nil
}

// SetActive 激活指定配置并停用其余配置
func (r *MemoryBotConfigRepository) SetActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: id=%s", ErrConfigNotFound, id)
	}

	now := time.Now()
	for key, item := range r.items {
		active := key == id
		if item.IsActive != active {
			item.IsActive = active
			item.UpdatedAt = now
		}
	}
	return nil
}

// DeleteAll 删除全部配置
func (r *MemoryBotConfigRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := int64(len(r.items))
	r.items = make(map[string]*models.BotConfig)
	return count, nil
}

// EnsureIndexes 内存实现无需索引
func (r *MemoryBotConfigRepository) EnsureIndexes(ctx context.Context) error { return nil }
