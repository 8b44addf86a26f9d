package dedupe

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL 同一消息 ID 的去重窗口
const DefaultTTL = 24 * time.Hour

// Guard 判断 webhook 推送的消息是否首次出现
type Guard interface {
	// FirstSeen 首次出现返回 true，并在 TTL 内记住该 ID
	FirstSeen(ctx context.Context, messageID string) (bool, error)

	// Forget 删除已记录的 ID
	Forget(ctx context.Context, messageID string) error
}

// MemoryGuard 进程内 TTL 去重
type MemoryGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	values  map[string]time.Time
	inserts int
	nowFunc func() time.Time
}

// pruneEvery 每写入多少次清理一次过期项
const pruneEvery = 256

// NewMemoryGuard 创建进程内去重器
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		ttl:     ttl,
		values:  make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

// FirstSeen 首次出现返回 true
func (g *MemoryGuard) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}

	now := g.nowFunc()

	g.mu.Lock()
	defer g.mu.Unlock()

	if expires, ok := g.values[messageID]; ok && now.Before(expires) {
		return false, nil
	}

	g.values[messageID] = now.Add(g.ttl)
	g.inserts++
	if g.inserts >= pruneEvery {
		g.inserts = 0
		for id, expires := range g.values {
			if !now.Before(expires) {
				delete(g.values, id)
			}
		}
	}
	return true, nil
}

// Forget 删除已记录的 ID
func (g *MemoryGuard) Forget(ctx context.Context, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.values, messageID)
	return nil
}

// Len 当前记录的 ID 数量（包含尚未清理的过期项）
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.values)
}
