package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go_wabot/internal/config"
	"go_wabot/internal/whatsapp/bot"
	"go_wabot/internal/whatsapp/cleanup"
	"go_wabot/internal/whatsapp/dedupe"
	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"
	"go_wabot/internal/whatsapp/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPipeline struct {
	mu   sync.Mutex
	msgs []*models.InboundMessage
}

func (p *recordingPipeline) Handle(ctx context.Context, msg *models.InboundMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *recordingPipeline) first() *models.InboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	return p.msgs[0]
}

func (p *recordingPipeline) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type mockSessionGateway struct {
	mock.Mock
}

func (m *mockSessionGateway) GetSessionStatus(ctx context.Context) (*gateway.Session, error) {
	args := m.Called()
	session, _ := args.Get(0).(*gateway.Session)
	return session, args.Error(1)
}

func (m *mockSessionGateway) CreateSession(ctx context.Context) (*gateway.Session, error) {
	args := m.Called()
	session, _ := args.Get(0).(*gateway.Session)
	return session, args.Error(1)
}

func (m *mockSessionGateway) GetSessions(ctx context.Context) ([]gateway.Session, error) {
	args := m.Called()
	sessions, _ := args.Get(0).([]gateway.Session)
	return sessions, args.Error(1)
}

func (m *mockSessionGateway) DeleteSession(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockSessionGateway) RestartSession(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockSessionGateway) GetQRCode(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockSessionGateway) GetChats(ctx context.Context) (json.RawMessage, error) {
	args := m.Called()
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockSessionGateway) GetGroups(ctx context.Context) (json.RawMessage, error) {
	args := m.Called()
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockSessionGateway) ConfigureWebhook(ctx context.Context, webhookURL string) (json.RawMessage, error) {
	args := m.Called(webhookURL)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockSessionGateway) CheckNumber(ctx context.Context, phone string) (*gateway.NumberStatus, error) {
	args := m.Called(phone)
	status, _ := args.Get(0).(*gateway.NumberStatus)
	return status, args.Error(1)
}

func (m *mockSessionGateway) ForwardMessage(ctx context.Context, targetChatID, messageID string) error {
	return m.Called(targetChatID, messageID).Error(0)
}

type testEnv struct {
	server      *Server
	pipeline    *recordingPipeline
	pool        *bot.WorkerPool
	gateway     *mockSessionGateway
	guard       *dedupe.MemoryGuard
	submissions *repository.MemorySubmissionRepository
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Port: 0, StorageDriver: config.StorageMemory}
	if mutate != nil {
		mutate(cfg)
	}

	env := &testEnv{
		pipeline:    &recordingPipeline{},
		pool:        bot.NewWorkerPool(2, 16),
		gateway:     &mockSessionGateway{},
		guard:       dedupe.NewMemoryGuard(time.Hour),
		submissions: repository.NewMemorySubmissionRepository(),
	}
	t.Cleanup(env.pool.Shutdown)

	env.server = New(context.Background(), cfg, Deps{
		Pipeline:    env.pipeline,
		Pool:        env.pool,
		Guard:       env.guard,
		Submissions: service.NewSubmissionService(env.submissions, time.UTC),
		Cleanup:     cleanup.NewSweeper(env.submissions, nil, cleanup.Options{}),
		Gateway:     env.gateway,
	})
	return env
}

func (e *testEnv) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const messageEvent = `{"event":"message","session":"bot-session","payload":{"id":"msg-1","body":"Olá","from":"5511@c.us","fromMe":false,"timestamp":1700000000}}`

func TestWebhookDispatchesMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/webhook", []byte(messageEvent), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	require.Eventually(t, func() bool { return env.pipeline.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Olá", env.pipeline.first().Body)
}

func TestWebhookIgnoresDuplicatesAndOtherEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/webhook", []byte(messageEvent), nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/webhook", []byte(messageEvent), nil).Code)

	w := env.do(http.MethodPost, "/webhook", []byte(`{"event":"session.status","session":"bot-session","payload":null}`), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return env.pipeline.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, env.pipeline.count())
}

func TestWebhookAcceptsForeignEventShapes(t *testing.T) {
	env := newTestEnv(t, nil)

	bodies := []string{
		`{"event":"presence.update","session":"bot-session","payload":[{"id":"5511@c.us","presences":[]}]}`,
		`{"event":"message.ack","session":"bot-session","payload":{"id":{"fromMe":true,"id":"ABC"},"ack":3}}`,
		`{"event":"session.status","session":"bot-session","payload":{"timestamp":"2024-01-01T00:00:00Z"}}`,
		`{"event":"engine.event","session":"bot-session","payload":"raw"}`,
	}
	for _, body := range bodies {
		w := env.do(http.MethodPost, "/webhook", []byte(body), nil)
		assert.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, "Evento ignorado", decode(t, w)["message"], body)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, env.pipeline.count())
}

func TestWebhookReleasesDedupeWhenDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pool.Shutdown()

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodPost, "/webhook", []byte(messageEvent), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Webhook processado com sucesso", decode(t, w)["message"])
	}
	assert.Equal(t, 0, env.guard.Len())
	assert.Equal(t, uint64(2), env.pool.Stats().Dropped)
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/webhook", []byte(`{not json`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/webhook", []byte(`{"event":"message","session":"bot-session","payload":{"id":{"server":"c.us"}}}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.pipeline.count())
}

func TestWebhookHMAC(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.WAHA.WebhookHMACKey = "shared" })

	w := env.do(http.MethodPost, "/webhook", []byte(messageEvent), map[string]string{webhookHMACHeader: "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	mac := hmac.New(sha512.New, []byte("shared"))
	mac.Write([]byte(messageEvent))
	signature := hex.EncodeToString(mac.Sum(nil))

	w = env.do(http.MethodPost, "/webhook", []byte(messageEvent), map[string]string{webhookHMACHeader: signature})
	assert.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool { return env.pipeline.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebhookTestEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/webhook/test", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook endpoint funcionando", decode(t, w)["message"])
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.APIKey = "k1" })

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/stats", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/stats", nil, map[string]string{apiKeyHeader: "wrong"}).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/stats", nil, map[string]string{apiKeyHeader: "k1"}).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/stats", nil, map[string]string{"Authorization": "Bearer k1"}).Code)

	// webhook 不受 API key 保护
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/webhook", []byte(messageEvent), nil).Code)
}

func TestSubmissionsAndCleanupEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.submissions.Create(ctx, &models.Submission{
		ID: "s-1", ConfigID: "cfg", From: "5511@c.us", Source: models.SourceDirect,
		FormData: models.FormData{{Key: "mensagem", Value: "oi"}}, SubmittedAt: time.Now(),
	}))

	w := env.do(http.MethodGet, "/api/submissions?from=5511@c.us&forwarded=false", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])

	w = env.do(http.MethodGet, "/api/submissions/s-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"mensagem": "oi"}, data["formData"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/submissions/missing", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/submissions?limit=-1", nil, nil).Code)

	w = env.do(http.MethodPost, "/api/cleanup", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), result["deletedSubmissions"])

	all, err := env.submissions.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	w = env.do(http.MethodGet, "/api/cleanup/next", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	next := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(cleanup.DefaultIntervalDays), next["intervalDays"])
}

func TestWAHAEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	env.gateway.On("GetSessionStatus").Return(&gateway.Session{Name: "bot-session", Status: gateway.SessionWorking}, nil).Once()
	env.gateway.On("GetQRCode").Return("", &gateway.APIError{StatusCode: http.StatusNotFound}).Once()
	env.gateway.On("GetGroups").Return(json.RawMessage(`[{"id":"120363@g.us"}]`), nil).Once()
	env.gateway.On("CreateSession").Return(&gateway.Session{Name: "bot-session", Status: gateway.SessionStarting}, nil).Once()
	env.gateway.On("RestartSession").Return(errors.New("connection refused")).Once()
	env.gateway.On("ConfigureWebhook", "http://bot/webhook").Return(json.RawMessage(`{}`), nil).Once()

	w := env.do(http.MethodGet, "/api/waha/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "WORKING", decode(t, w)["data"].(map[string]interface{})["status"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/waha/qr", nil, nil).Code)

	w = env.do(http.MethodGet, "/api/waha/groups", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/waha/session", nil, nil).Code)
	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodPost, "/api/waha/session/restart", nil, nil).Code)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/waha/webhook", []byte(`{}`), nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/waha/webhook", []byte(`{"webhookUrl":"http://bot/webhook"}`), nil).Code)

	env.gateway.AssertExpectations(t)
}

func TestWAHANumberAndForwardEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	env.gateway.On("CheckNumber", "5511999990000").Return(&gateway.NumberStatus{NumberExists: true, ChatID: "5511999990000@c.us"}, nil).Once()
	env.gateway.On("ForwardMessage", "120363@g.us", "true_5511@c.us_ABC").Return(nil).Once()

	w := env.do(http.MethodGet, "/api/waha/check-number/5511999990000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["numberExists"])

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/waha/forward", []byte(`{"chatId":"120363@g.us"}`), nil).Code)
	w = env.do(http.MethodPost, "/api/waha/forward", []byte(`{"chatId":"120363@g.us","messageId":"true_5511@c.us_ABC"}`), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.gateway.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, config.StorageMemory, data["storage"])
	assert.NotNil(t, data["workers"])

	env.server.deps.StoragePing = func(context.Context) error { return errors.New("no reachable servers") }
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/health", nil, nil).Code)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := corsConfig(nil)
	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, cfg.AllowCredentials)

	cfg = corsConfig([]string{"http://localhost:5173"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowOrigins)
}
