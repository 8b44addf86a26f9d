package service

import (
	"context"
	"testing"
	"time"

	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*repository.MemorySubmissionRepository, time.Time) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	// 2024-05-15 是周三
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	items := []*models.Submission{
		{ID: "1", ConfigID: "a", From: "5511@c.us", FromName: "Ana", Source: models.SourceDirect,
			FormData: models.FormData{{Key: "mensagem", Value: "Quero um orçamento"}}, SubmittedAt: now.Add(-time.Hour)},
		{ID: "2", ConfigID: "a", From: "5522@c.us", Source: models.SourceForm,
			FormData: models.FormData{{Key: "name", Value: "Bruno"}}, SubmittedAt: now.AddDate(0, 0, -1)},
		{ID: "3", ConfigID: "b", From: "5511@c.us", Source: models.SourceDirect,
			FormData: models.FormData{{Key: "mensagem", Value: "Suporte"}}, SubmittedAt: now.AddDate(0, 0, -5)},
	}
	for _, item := range items {
		require.NoError(t, repo.Create(ctx, item))
	}
	require.NoError(t, repo.UpdateForwardOutcome(ctx, "1", now))
	return repo, now
}

func TestSearch(t *testing.T) {
	repo, now := seed(t)
	svc := NewSubmissionService(repo, time.UTC)
	ctx := context.Background()

	items, total, err := svc.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "1", items[0].ID)

	items, _, err = svc.Search(ctx, SearchFilter{From: "5511@c.us", ConfigID: "b"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "3", items[0].ID)

	items, _, err = svc.Search(ctx, SearchFilter{Query: "ORÇAMENTO"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ID)

	items, _, err = svc.Search(ctx, SearchFilter{Query: "ana"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	forwarded := false
	items, _, err = svc.Search(ctx, SearchFilter{Forwarded: &forwarded})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, _, err = svc.Search(ctx, SearchFilter{Since: now.AddDate(0, 0, -2), Until: now})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, total, err = svc.Search(ctx, SearchFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ID)

	items, total, err = svc.Search(ctx, SearchFilter{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, items)
}

func TestStats(t *testing.T) {
	repo, now := seed(t)
	svc := NewSubmissionService(repo, time.UTC)
	svc.nowFunc = func() time.Time { return now }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 2, stats.ThisWeek)
	assert.Equal(t, 1, stats.Forwarded)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, stats.ByConfig)
}

func TestGetNotFound(t *testing.T) {
	svc := NewSubmissionService(repository.NewMemorySubmissionRepository(), nil)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrSubmissionNotFound)
}
