package bot

import (
	"context"
	"sync"
	"time"

	"go_wabot/internal/logger"
)

// Scheduler 延迟执行后续步骤，等待期间不占用 worker
type Scheduler interface {
	After(ctx context.Context, delay time.Duration, name string, fn func(ctx context.Context))
}

// PoolScheduler 计时器到期后把任务投递到工作池
type PoolScheduler struct {
	pool *WorkerPool

	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]*time.Timer
	stopped bool
}

// NewPoolScheduler 创建基于工作池的调度器
func NewPoolScheduler(pool *WorkerPool) *PoolScheduler {
	return &PoolScheduler{
		pool:   pool,
		timers: make(map[uint64]*time.Timer),
	}
}

// After 在 delay 之后执行 fn
func (s *PoolScheduler) After(ctx context.Context, delay time.Duration, name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		task := Task{Name: name, Ctx: ctx, Run: fn}
		if !s.pool.Submit(task) {
			// 工作池拒收时直接执行
			go runDetached(task)
		}
	})
}

// runDetached 在独立 goroutine 中执行工作池拒收的任务
func runDetached(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Errorf("Detached task %s panic recovered: %v", task.Name, r)
		}
	}()

	logger.L().Warnf("Running task %s outside the worker pool", task.Name)
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	task.Run(ctx)
}

// Pending 尚未触发的计时器数量
func (s *PoolScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop 取消所有未触发的计时器，之后的 After 调用被忽略
func (s *PoolScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
