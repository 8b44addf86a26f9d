package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// everySchedule 亚秒级固定间隔，cron.Every 会取整到秒
type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type failingSubmissions struct {
	*repository.MemorySubmissionRepository
}

func (failingSubmissions) DeleteAll(context.Context) (int64, error) {
	return 0, errors.New("connection reset")
}

func seedSubmissions(t *testing.T, repo repository.SubmissionRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.Submission{
			ID:          string(rune('a' + i)),
			From:        "5511@c.us",
			Source:      models.SourceDirect,
			SubmittedAt: time.Now(),
		}))
	}
}

func TestManualCleanupRemovesAllSubmissions(t *testing.T) {
	ctx := context.Background()
	submissions := repository.NewMemorySubmissionRepository()
	configs := repository.NewMemoryBotConfigRepository()
	require.NoError(t, configs.Create(ctx, &models.BotConfig{ID: "cfg", IsActive: true}))
	seedSubmissions(t, submissions, 3)

	sweeper := NewSweeper(submissions, configs, Options{})
	result := sweeper.ManualCleanup(ctx)

	assert.True(t, result.Success)
	assert.Equal(t, int64(3), result.DeletedSubmissions)
	assert.Equal(t, int64(0), result.DeletedConfigs)
	assert.False(t, result.CleanedAt.IsZero())

	all, err := submissions.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	active, err := configs.GetActiveConfig(ctx)
	require.NoError(t, err)
	assert.NotNil(t, active)

	last := sweeper.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, result.CleanedAt, last.CleanedAt)
}

func TestCleanupPurgesConfigsWhenEnabled(t *testing.T) {
	ctx := context.Background()
	submissions := repository.NewMemorySubmissionRepository()
	configs := repository.NewMemoryBotConfigRepository()
	require.NoError(t, configs.Create(ctx, &models.BotConfig{ID: "cfg", IsActive: true}))

	sweeper := NewSweeper(submissions, configs, Options{PurgeConfigs: true})
	result := sweeper.Sweep(ctx)

	assert.True(t, result.Success)
	assert.Equal(t, int64(1), result.DeletedConfigs)
}

func TestCleanupFailureIsReported(t *testing.T) {
	sweeper := NewSweeper(failingSubmissions{repository.NewMemorySubmissionRepository()}, nil, Options{})
	result := sweeper.ManualCleanup(context.Background())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "connection reset")
	assert.False(t, result.CleanedAt.IsZero())
}

func TestNextCleanupInfo(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSweeper(repository.NewMemorySubmissionRepository(), nil, Options{Location: time.UTC})
	sweeper.nowFunc = func() time.Time { return now }

	info := sweeper.NextCleanupInfo()
	assert.Equal(t, DefaultIntervalDays, info.IntervalDays)
	assert.Equal(t, now.Add(15*24*time.Hour), info.NextCleanup)
	assert.Equal(t, "16/01/2024, 12:00:00", info.Display)
	assert.Equal(t, 15*24*time.Hour, sweeper.Interval())
}

func TestTimerKeepsRunningAfterFailure(t *testing.T) {
	submissions := repository.NewMemorySubmissionRepository()
	sweeper := NewSweeper(failingSubmissions{submissions}, nil, Options{})
	sweeper.schedule = everySchedule(20 * time.Millisecond)

	sweeper.Start()
	sweeper.Start()
	defer sweeper.Stop()

	var firstFailure time.Time
	require.Eventually(t, func() bool {
		last := sweeper.LastResult()
		if last == nil {
			return false
		}
		if firstFailure.IsZero() {
			firstFailure = last.CleanedAt
			return false
		}
		return last.CleanedAt.After(firstFailure) && !last.Success
	}, 3*time.Second, 10*time.Millisecond)
}

func TestTimerSweepsSubmissions(t *testing.T) {
	ctx := context.Background()
	submissions := repository.NewMemorySubmissionRepository()
	seedSubmissions(t, submissions, 2)

	sweeper := NewSweeper(submissions, nil, Options{})
	sweeper.schedule = everySchedule(20 * time.Millisecond)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(runCtx) }()

	require.Eventually(t, func() bool {
		all, err := submissions.GetAll(ctx)
		return err == nil && len(all) == 0
	}, 3*time.Second, 10*time.Millisecond)

	assert.False(t, sweeper.NextCleanupInfo().NextCleanup.IsZero())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
