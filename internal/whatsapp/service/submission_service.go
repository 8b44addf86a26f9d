package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"
)

// SearchFilter 提交记录查询条件，零值字段不参与过滤
type SearchFilter struct {
	From      string
	ConfigID  string
	Query     string // 在表单值中模糊匹配（忽略大小写）
	Forwarded *bool
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Stats 提交记录统计
type Stats struct {
	Total     int            `json:"total"`
	Today     int            `json:"today"`
	ThisWeek  int            `json:"thisWeek"`
	Forwarded int            `json:"forwarded"`
	ByConfig  map[string]int `json:"byConfig"`
}

// SubmissionService 面向管理接口的提交记录查询
type SubmissionService struct {
	repo     repository.SubmissionRepository
	location *time.Location
	nowFunc  func() time.Time
}

// NewSubmissionService 创建查询服务
func NewSubmissionService(repo repository.SubmissionRepository, loc *time.Location) *SubmissionService {
	if loc == nil {
		loc = time.Local
	}
	return &SubmissionService{repo: repo, location: loc, nowFunc: time.Now}
}

// Get 根据 ID 获取记录
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	return s.repo.GetByID(ctx, id)
}

// Search 按条件过滤，结果按提交时间倒序；返回过滤后的总数
func (s *SubmissionService) Search(ctx context.Context, filter SearchFilter) ([]*models.Submission, int, error) {
	var (
		items []*models.Submission
		err   error
	)
	switch {
	case filter.From != "":
		items, err = s.repo.GetByFrom(ctx, filter.From)
	case filter.ConfigID != "":
		items, err = s.repo.GetByConfigID(ctx, filter.ConfigID)
	default:
		items, err = s.repo.GetAll(ctx)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search submissions: %w", err)
	}

	query := strings.TrimSpace(filter.Query)
	matched := make([]*models.Submission, 0, len(items))
	for _, item := range items {
		if filter.ConfigID != "" && item.ConfigID != filter.ConfigID {
			continue
		}
		if filter.Forwarded != nil && item.ForwardedToGroup != *filter.Forwarded {
			continue
		}
		if !filter.Since.IsZero() && item.SubmittedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !item.SubmittedAt.Before(filter.Until) {
			continue
		}
		if query != "" && !item.FormData.Contains(query) && !strings.Contains(strings.ToLower(item.FromName), strings.ToLower(query)) {
			continue
		}
		matched = append(matched, item)
	}

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*models.Submission{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// Stats 统计总量、今日、本周（周一起算）与各配置数量
func (s *SubmissionService) Stats(ctx context.Context) (*Stats, error) {
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	now := s.nowFunc().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	offset := (int(startOfDay.Weekday()) + 6) % 7
	startOfWeek := startOfDay.AddDate(0, 0, -offset)

	stats := &Stats{Total: len(items), ByConfig: make(map[string]int)}
	for _, item := range items {
		at := item.SubmittedAt.In(s.location)
		if !at.Before(startOfDay) {
			stats.Today++
		}
		if !at.Before(startOfWeek) {
			stats.ThisWeek++
		}
		if item.ForwardedToGroup {
			stats.Forwarded++
		}
		stats.ByConfig[item.ConfigID]++
	}
	return stats, nil
}
