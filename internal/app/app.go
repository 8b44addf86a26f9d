package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go_wabot/internal/config"
	"go_wabot/internal/logger"
	"go_wabot/internal/mongo"
	"go_wabot/internal/postgres"
	"go_wabot/internal/redis"
	"go_wabot/internal/server"
	"go_wabot/internal/whatsapp/bot"
	"go_wabot/internal/whatsapp/cleanup"
	"go_wabot/internal/whatsapp/dedupe"
	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/repository"
	"go_wabot/internal/whatsapp/service"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	cfg *config.Config

	MongoDB  *mongo.Client
	Postgres *postgres.Client
	Redis    *goredis.Client

	Submissions repository.SubmissionRepository
	Configs     repository.BotConfigRepository
	Gateway     *gateway.Client
	Pool        *bot.WorkerPool
	Scheduler   *bot.PoolScheduler
	Pipeline    *bot.Pipeline
	Sweeper     *cleanup.Sweeper

	ctx    context.Context
	cancel context.CancelFunc
	server *server.Server
}

// New 初始化应用及其所有服务
// 任何服务初始化失败都会清理已初始化的部分并返回错误
func New(cfg *config.Config) (*App, error) {
	loc, err := time.LoadLocation(cfg.Bot.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Bot.Timezone, err)
	}

	app := &App{cfg: cfg}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	if err := app.initStorage(); err != nil {
		app.Close(context.Background())
		return nil, err
	}

	guard, err := app.initGuard()
	if err != nil {
		app.Close(context.Background())
		return nil, err
	}

	app.Gateway, err = gateway.NewClient(cfg.WAHA)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init WAHA client failed: %w", err)
	}

	app.Pool = bot.NewWorkerPool(cfg.Worker.Workers, cfg.Worker.QueueSize)
	app.Scheduler = bot.NewPoolScheduler(app.Pool)
	app.Pipeline = bot.NewPipeline(app.Gateway, app.Configs, app.Submissions, app.Scheduler, bot.Options{
		GreetingMessage: cfg.Bot.GreetingMessage,
		FormMessage:     cfg.Bot.FormMessage,
		TypingDelay:     cfg.Bot.TypingDelay,
		FormDelay:       cfg.Bot.FormDelay,
		Location:        loc,
	})

	app.Sweeper = cleanup.NewSweeper(app.Submissions, app.Configs, cleanup.Options{
		IntervalDays: cfg.Cleanup.IntervalDays,
		PurgeConfigs: cfg.Cleanup.PurgeConfigs,
		Location:     loc,
	})

	app.server = server.New(app.ctx, cfg, server.Deps{
		Pipeline:    app.Pipeline,
		Pool:        app.Pool,
		Guard:       guard,
		Submissions: service.NewSubmissionService(app.Submissions, loc),
		Cleanup:     app.Sweeper,
		Gateway:     app.Gateway,
		StoragePing: app.pingStorage,
	})

	logger.L().Infof("Application initialized: storage=%s, session=%s, workers=%d",
		cfg.StorageDriver, app.Gateway.SessionName(), cfg.Worker.Workers)
	return app, nil
}

func (a *App) initStorage() error {
	switch a.cfg.StorageDriver {
	case config.StorageMongo:
		client, err := mongo.InitFromConfig(a.cfg)
		if err != nil {
			return fmt.Errorf("init MongoDB failed: %w", err)
		}
		a.MongoDB = client
		a.Submissions = repository.NewMongoSubmissionRepository(client.Database())
		a.Configs = repository.NewMongoBotConfigRepository(client.Database())
		logger.L().Info("MongoDB initialized successfully")
	case config.StoragePostgres:
		client, err := postgres.InitFromConfig(a.cfg)
		if err != nil {
			return fmt.Errorf("init PostgreSQL failed: %w", err)
		}
		a.Postgres = client
		a.Submissions = repository.NewPostgresSubmissionRepository(client.DB)
		a.Configs = repository.NewPostgresBotConfigRepository(client.DB)
		logger.L().Info("PostgreSQL initialized successfully")
	default:
		a.Submissions = repository.NewMemorySubmissionRepository()
		a.Configs = repository.NewMemoryBotConfigRepository()
		logger.L().Warn("Using in-memory storage, data is lost on restart")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Submissions.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure submission indexes failed: %w", err)
	}
	if err := a.Configs.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure bot config indexes failed: %w", err)
	}

	if a.cfg.SeedDefaultConfig {
		if _, err := repository.SeedDefaultConfig(ctx, a.Configs, a.cfg.Bot.GreetingMessage, a.cfg.Bot.FormMessage); err != nil {
			return fmt.Errorf("seed default bot config failed: %w", err)
		}
	}
	return nil
}

// initGuard 配置了 Redis 时跨实例去重，否则使用进程内去重
func (a *App) initGuard() (dedupe.Guard, error) {
	if a.cfg.RedisURL == "" {
		return dedupe.NewMemoryGuard(dedupe.DefaultTTL), nil
	}

	client, err := redis.NewClient(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init Redis failed: %w", err)
	}
	a.Redis = client
	logger.L().Info("Redis initialized successfully")
	return dedupe.NewRedisGuard(client, dedupe.DefaultTTL), nil
}

func (a *App) pingStorage(ctx context.Context) error {
	switch {
	case a.MongoDB != nil:
		return a.MongoDB.Ping(ctx)
	case a.Postgres != nil:
		return a.Postgres.Ping(ctx)
	}
	return nil
}

// Run 启动 HTTP 服务和定期清理，阻塞直到 ctx 结束或任一服务失败
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Run(ctx)
	})
	group.Go(func() error {
		return a.Sweeper.Run(ctx)
	})
	return group.Wait()
}

// Close 优雅关闭所有服务
// 先停止接收新任务，再关闭存储连接
func (a *App) Close(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Pool != nil {
		a.Pool.Shutdown()
	}
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}

	var errs []error
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close MongoDB failed: %w", err))
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close PostgreSQL failed: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close Redis failed: %w", err))
		}
	}
	return errors.Join(errs...)
}
