package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 存储驱动
const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

// Config 应用程序配置
type Config struct {
	Port          int    // HTTP 监听端口
	StorageDriver string // memory / mongo / postgres
	MongoURI      string // MongoDB连接URI
	MongoDBName   string // MongoDB数据库名称
	DatabaseURL   string // PostgreSQL 连接串
	RedisURL      string // Redis 连接串（可选，用于 webhook 去重）
	APIKey        string // 管理接口 API Key（为空则不校验）
	CORSOrigins   []string

	SeedDefaultConfig bool // 没有任何配置时写入默认配置

	WAHA    WAHAConfig
	Bot     BotConfig
	Cleanup CleanupConfig
	Worker  WorkerConfig
}

// WAHAConfig WhatsApp 网关配置
type WAHAConfig struct {
	BaseURL        string
	APIKey         string
	SessionName    string
	Timeout        time.Duration
	RetryAttempts  int     // 0 表示不重试
	RatePerSecond  float64 // 出站请求速率限制，<=0 表示不限制
	WebhookHMACKey string  // 校验 X-Webhook-Hmac（为空则不校验）
}

// BotConfig 机器人行为相关的运行期默认值
type BotConfig struct {
	GreetingMessage string
	FormMessage     string
	Timezone        string
	TypingDelay     time.Duration // 模拟输入时长
	FormDelay       time.Duration // 问候语与表单之间的间隔
}

// CleanupConfig 定期清理配置
type CleanupConfig struct {
	IntervalDays int
	PurgeConfigs bool // 是否同时清理机器人配置（默认关闭）
}

// WorkerConfig webhook 处理工作池配置
type WorkerConfig struct {
	Workers   int
	QueueSize int
}

// Load 从环境变量加载配置
// 如果当前目录存在 .env 文件，会先加载它（已存在的环境变量不会被覆盖）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:    strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDBName: envOrDefault("MONGO_DB_NAME", "go_wabot"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		APIKey:      strings.TrimSpace(os.Getenv("API_KEY")),
		CORSOrigins: parseList(envOrDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	var err error
	if cfg.Port, err = intFromEnv("PORT", 3000, 1); err != nil {
		return nil, err
	}
	if cfg.SeedDefaultConfig, err = boolFromEnv("SEED_DEFAULT_CONFIG", true); err != nil {
		return nil, err
	}

	cfg.StorageDriver, err = resolveStorageDriver(os.Getenv("STORAGE_DRIVER"), cfg.MongoURI, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.WAHA, err = loadWAHAConfig(); err != nil {
		return nil, err
	}
	if cfg.Bot, err = loadBotConfig(); err != nil {
		return nil, err
	}
	if cfg.Cleanup, err = loadCleanupConfig(); err != nil {
		return nil, err
	}

	if cfg.Worker.Workers, err = intFromEnv("WORKER_COUNT", 8, 1); err != nil {
		return nil, err
	}
	if cfg.Worker.QueueSize, err = intFromEnv("WORKER_QUEUE_SIZE", 256, 1); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveStorageDriver 未显式指定时按可用连接串推断
func resolveStorageDriver(raw, mongoURI, databaseURL string) (string, error) {
	driver := strings.ToLower(strings.TrimSpace(raw))
	switch driver {
	case "":
		switch {
		case mongoURI != "":
			return StorageMongo, nil
		case databaseURL != "":
			return StoragePostgres, nil
		default:
			return StorageMemory, nil
		}
	case StorageMemory:
		return driver, nil
	case StorageMongo:
		if mongoURI == "" {
			return "", fmt.Errorf("STORAGE_DRIVER=mongo requires MONGO_URI")
		}
		return driver, nil
	case StoragePostgres:
		if databaseURL == "" {
			return "", fmt.Errorf("STORAGE_DRIVER=postgres requires DATABASE_URL")
		}
		return driver, nil
	default:
		return "", fmt.Errorf("invalid STORAGE_DRIVER %q", raw)
	}
}

func loadWAHAConfig() (WAHAConfig, error) {
	cfg := WAHAConfig{
		BaseURL:        envOrDefault("WAHA_BASE_URL", "http://localhost:3001"),
		APIKey:         strings.TrimSpace(os.Getenv("WAHA_API_KEY")),
		SessionName:    envOrDefault("WHATSAPP_SESSION_NAME", "bot-session"),
		WebhookHMACKey: strings.TrimSpace(os.Getenv("WEBHOOK_HMAC_KEY")),
	}

	seconds, err := intFromEnv("WAHA_TIMEOUT_SECONDS", 30, 1)
	if err != nil {
		return WAHAConfig{}, err
	}
	cfg.Timeout = time.Duration(seconds) * time.Second

	if cfg.RetryAttempts, err = intFromEnv("WAHA_RETRY_ATTEMPTS", 0, 0); err != nil {
		return WAHAConfig{}, err
	}

	if rateStr := strings.TrimSpace(os.Getenv("WAHA_RATE_PER_SECOND")); rateStr != "" {
		rate, err := strconv.ParseFloat(rateStr, 64)
		if err != nil || rate < 0 {
			return WAHAConfig{}, fmt.Errorf("invalid WAHA_RATE_PER_SECOND: %s", rateStr)
		}
		cfg.RatePerSecond = rate
	} else {
		cfg.RatePerSecond = 10
	}

	return cfg, nil
}

func loadBotConfig() (BotConfig, error) {
	cfg := BotConfig{
		GreetingMessage: envOrDefault("BOT_GREETING_MESSAGE", "Olá! Como posso ajudá-lo hoje?"),
		FormMessage:     envOrDefault("BOT_FORM_MESSAGE", "Por favor, preencha o formulário abaixo:"),
		Timezone:        envOrDefault("BOT_TIMEZONE", "America/Sao_Paulo"),
	}

	typingMs, err := intFromEnv("TYPING_DELAY_MS", 1500, 0)
	if err != nil {
		return BotConfig{}, err
	}
	formMs, err := intFromEnv("FORM_DELAY_MS", 2000, 0)
	if err != nil {
		return BotConfig{}, err
	}

	cfg.TypingDelay = time.Duration(typingMs) * time.Millisecond
	cfg.FormDelay = time.Duration(formMs) * time.Millisecond
	return cfg, nil
}

func loadCleanupConfig() (CleanupConfig, error) {
	days, err := intFromEnv("CLEANUP_INTERVAL_DAYS", 15, 1)
	if err != nil {
		return CleanupConfig{}, err
	}
	purge, err := boolFromEnv("CLEANUP_PURGE_CONFIGS", false)
	if err != nil {
		return CleanupConfig{}, err
	}
	return CleanupConfig{IntervalDays: days, PurgeConfigs: purge}, nil
}

// intFromEnv 解析整数环境变量，未设置时返回默认值
func intFromEnv(key string, fallback, min int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if value < min {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, min, value)
	}
	return value, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return value, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// parseList 解析逗号分隔的字符串
// 支持格式: "a" 或 "a,b"
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		items = append(items, part)
	}

	return items
}
