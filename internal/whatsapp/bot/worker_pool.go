package bot

import (
	"context"
	"sync"
	"sync/atomic"

	"go_wabot/internal/logger"
)

// Task 工作池任务
type Task struct {
	Name string
	Ctx  context.Context
	Run  func(ctx context.Context)
}

// PoolStats 工作池运行状态
type PoolStats struct {
	Workers   int    `json:"workers"`
	QueueLen  int    `json:"queueLen"`
	QueueCap  int    `json:"queueCap"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
}

// WorkerPool webhook 处理工作池
type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	workers   int

	mu     sync.RWMutex
	closed bool

	processed atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// NewWorkerPool 创建工作池
// workers: worker 协程数量
// queueSize: 任务队列大小
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	pool := &WorkerPool{
		taskQueue: make(chan Task, queueSize),
		workers:   workers,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	logger.L().Infof("Worker pool started with %d workers, queue size %d", workers, queueSize)
	return pool
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger.L().Debugf("Worker %d started", id)

	for task := range p.taskQueue {
		p.run(id, task)
	}

	logger.L().Debugf("Worker %d stopped", id)
}

func (p *WorkerPool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			logger.L().Errorf("Worker %d: task %s panic recovered: %v", id, task.Name, r)
		}
		p.processed.Add(1)
	}()

	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	task.Run(ctx)
}

// Submit 提交任务到工作池，队列已满或已关闭时丢弃并返回 false
func (p *WorkerPool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		logger.L().Warnf("Worker pool is closed, task %s dropped", task.Name)
		return false
	}

	select {
	case p.taskQueue <- task:
		return true
	default:
		p.dropped.Add(1)
		logger.L().Warnf("Worker pool queue is full, task %s dropped", task.Name)
		return false
	}
}

// Stats 返回运行状态快照
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		QueueLen:  len(p.taskQueue),
		QueueCap:  cap(p.taskQueue),
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
		Panics:    p.panics.Load(),
	}
}

// Shutdown 优雅关闭工作池
// 等待所有已入队的任务完成，可重复调用
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	logger.L().Info("Shutting down worker pool...")
	p.wg.Wait()
	logger.L().Info("Worker pool shut down successfully")
}
