package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"

	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SendText(ctx context.Context, chatID, text string) error {
	return m.Called(chatID, text).Error(0)
}

func (m *mockGateway) SendButtons(ctx context.Context, chatID, text string, buttons []gateway.Button) error {
	return m.Called(chatID, text, buttons).Error(0)
}

func (m *mockGateway) StartTyping(ctx context.Context, chatID string) error {
	return m.Called(chatID).Error(0)
}

func (m *mockGateway) StopTyping(ctx context.Context, chatID string) error {
	return m.Called(chatID).Error(0)
}

func (m *mockGateway) methods() []string {
	names := make([]string, 0, len(m.Calls))
	for _, call := range m.Calls {
		names = append(names, call.Method)
	}
	return names
}

// syncScheduler 立即执行后续步骤并记录等待时长
type syncScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *syncScheduler) After(ctx context.Context, delay time.Duration, name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	s.delays = append(s.delays, delay)
	s.mu.Unlock()
	fn(ctx)
}

type failingStore struct {
	*repository.MemorySubmissionRepository
}

func (f failingStore) Create(ctx context.Context, s *models.Submission) error {
	return errors.New("database unavailable")
}

type staticConfigs struct {
	cfg *models.BotConfig
	err error
}

func (s staticConfigs) GetActiveConfig(ctx context.Context) (*models.BotConfig, error) {
	return s.cfg.Clone(), s.err
}
