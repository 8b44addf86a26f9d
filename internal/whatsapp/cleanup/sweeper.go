package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/repository"

	"github.com/robfig/cron/v3"
)

// DefaultIntervalDays 默认清理周期（天）
const DefaultIntervalDays = 15

// Result 一次清理的结果
type Result struct {
	Success            bool      `json:"success"`
	Message            string    `json:"message"`
	CleanedAt          time.Time `json:"cleanedAt"`
	DeletedSubmissions int64     `json:"deletedSubmissions"`
	DeletedConfigs     int64     `json:"deletedConfigs,omitempty"`
}

// NextInfo 下一次清理的信息
type NextInfo struct {
	NextCleanup  time.Time `json:"nextCleanup"`
	Display      string    `json:"display"`
	IntervalDays int       `json:"intervalDays"`
}

// Options 清理器参数
type Options struct {
	IntervalDays int
	PurgeConfigs bool // 同时删除机器人配置
	Location     *time.Location
}

// Sweeper 定期删除全部提交记录
// 失败只记录日志，下一次仍按固定周期执行
type Sweeper struct {
	submissions  repository.SubmissionRepository
	configs      repository.BotConfigRepository
	intervalDays int
	purgeConfigs bool
	location     *time.Location

	schedule cron.Schedule
	nowFunc  func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	cancel  context.CancelFunc
	last    *Result
}

// NewSweeper 创建清理器，需要调用 Start 才会开始计时
func NewSweeper(submissions repository.SubmissionRepository, configs repository.BotConfigRepository, opts Options) *Sweeper {
	days := opts.IntervalDays
	if days <= 0 {
		days = DefaultIntervalDays
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	return &Sweeper{
		submissions:  submissions,
		configs:      configs,
		intervalDays: days,
		purgeConfigs: opts.PurgeConfigs,
		location:     loc,
		schedule:     cron.Every(time.Duration(days) * 24 * time.Hour),
		nowFunc:      time.Now,
	}
}

// Interval 清理周期
func (s *Sweeper) Interval() time.Duration {
	return time.Duration(s.intervalDays) * 24 * time.Hour
}

// Start 启动定时器，重复调用无效
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return
	}

	cronLogger := cron.PrintfLogger(logger.L())
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.entryID = c.Schedule(s.schedule, cron.FuncJob(func() {
		runCtx, done := context.WithTimeout(ctx, 2*time.Minute)
		defer done()
		s.Sweep(runCtx)
	}))
	s.cron = c
	s.cancel = cancel
	c.Start()

	logger.L().Infof("Cleanup sweeper started: every %d days, next run at %s",
		s.intervalDays, s.nextRunLocked().Format(time.RFC3339))
}

// Stop 停止定时器并等待正在执行的清理结束
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	logger.L().Info("Cleanup sweeper stopped")
}

// Run 启动清理器并阻塞到 ctx 结束
func (s *Sweeper) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Sweep 立即执行一次清理
func (s *Sweeper) Sweep(ctx context.Context) Result {
	started := s.nowFunc()
	logger.L().Info("Cleanup sweep started")

	result := Result{Success: true}

	deleted, err := s.submissions.DeleteAll(ctx)
	if err != nil {
		result.Success = false
		result.Message = fmt.Sprintf("failed to delete submissions: %v", err)
	} else {
		result.DeletedSubmissions = deleted
	}

	if result.Success && s.purgeConfigs && s.configs != nil {
		removed, err := s.configs.DeleteAll(ctx)
		if err != nil {
			result.Success = false
			result.Message = fmt.Sprintf("failed to delete bot configs: %v", err)
		} else {
			result.DeletedConfigs = removed
		}
	}

	result.CleanedAt = s.nowFunc()
	if result.Success {
		result.Message = "cleanup completed"
		logger.L().Infof("Cleanup sweep completed in %s: submissions=%d, configs=%d",
			result.CleanedAt.Sub(started), result.DeletedSubmissions, result.DeletedConfigs)
	} else {
		logger.L().Errorf("Cleanup sweep failed: %s", result.Message)
	}

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()

	return result
}

// ManualCleanup 运维手动触发的清理
func (s *Sweeper) ManualCleanup(ctx context.Context) Result {
	logger.L().Info("Manual cleanup requested")
	return s.Sweep(ctx)
}

// LastResult 最近一次清理结果，从未执行时返回 nil
func (s *Sweeper) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// NextCleanupInfo 下一次定时清理的时间
func (s *Sweeper) NextCleanupInfo() NextInfo {
	s.mu.Lock()
	next := s.nextRunLocked()
	s.mu.Unlock()

	return NextInfo{
		NextCleanup:  next,
		Display:      next.In(s.location).Format("02/01/2006, 15:04:05"),
		IntervalDays: s.intervalDays,
	}
}

func (s *Sweeper) nextRunLocked() time.Time {
	if s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			return next
		}
	}
	return s.schedule.Next(s.nowFunc())
}
