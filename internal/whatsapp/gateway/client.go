package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go_wabot/internal/config"
	"go_wabot/internal/logger"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

// Client 封装与 WAHA 网关的 HTTP 通讯
// 每个方法都是一次独立的请求/响应，默认不重试
type Client struct {
	baseURL     string
	apiKey      string
	sessionName string

	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts int
	backoffMin    time.Duration
	backoffMax    time.Duration
}

// Option 自定义客户端行为
type Option func(*Client)

// WithHTTPClient 自定义 HTTP 客户端（测试时使用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter 自定义出站限速器，传 nil 关闭限速
func WithLimiter(lim *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = lim
	}
}

// WithRetry 设置失败重试次数与退避区间
func WithRetry(attempts int, min, max time.Duration) Option {
	return func(c *Client) {
		if attempts < 0 {
			attempts = 0
		}
		c.retryAttempts = attempts
		if min > 0 {
			c.backoffMin = min
		}
		if max > 0 {
			c.backoffMax = max
		}
	}
}

// NewClient 根据配置创建网关客户端
func NewClient(cfg config.WAHAConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("WAHA base url cannot be empty")
	}
	if cfg.SessionName == "" {
		return nil, fmt.Errorf("WAHA session name cannot be empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		sessionName:   cfg.SessionName,
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: cfg.RetryAttempts,
		backoffMin:    500 * time.Millisecond,
		backoffMax:    5 * time.Second,
	}

	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// SessionName 当前使用的会话名
func (c *Client) SessionName() string {
	return c.sessionName
}

// APIError 网关返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("waha api error: status=%d, body=%s", e.StatusCode, e.Body)
}

// IsNotFound 是否为 404 响应
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized 是否为认证失败
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

// do 发送请求并将 JSON 响应解析到 out（out 为 nil 时丢弃响应体）
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode waha request failed: %w", err)
		}
		body = encoded
	}

	b := &backoff.Backoff{
		Min:    c.backoffMin,
		Max:    c.backoffMax,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("waha rate limiter: %w", err)
			}
		}

		retryable, err := c.roundTrip(ctx, method, path, query, body, out)
		if err == nil {
			return nil
		}
		if !retryable || attempt >= c.retryAttempts {
			return err
		}

		wait := b.Duration()
		logger.L().Warnf("WAHA request failed, retrying: method=%s, path=%s, attempt=%d, wait=%s, error=%v",
			method, path, attempt+1, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// roundTrip 执行一次请求，返回错误是否值得重试
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte, out interface{}) (bool, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return false, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("request waha api failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read waha response failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return retryable, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 256)}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return false, fmt.Errorf("decode waha response failed: %w", err)
		}
	}
	return false, nil
}

func (c *Client) sessionPath(format string) string {
	return fmt.Sprintf(format, url.PathEscape(c.sessionName))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
