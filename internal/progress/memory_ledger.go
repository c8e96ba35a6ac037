package progress

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLedger 基于go-cache实现的进程内进度账本
// 用于没有Redis也不想落盘的退化模式和测试；
// 跨进程的轮询者看不到它，只在单进程部署里使用
type MemoryLedger struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

// NewMemoryLedger 创建内存进度账本
func NewMemoryLedger(config Config) (Ledger, error) {
	ttl := config.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &MemoryLedger{
		cache: gocache.New(ttl, 10*time.Minute),
	}, nil
}

// Set 部分更新进度记录
func (l *MemoryLedger) Set(ctx context.Context, key string, update Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rec Record
	if value, found := l.cache.Get(key); found {
		rec = value.(Record)
	}

	rec = apply(rec, update)
	l.cache.Set(key, rec, gocache.DefaultExpiration)
	return nil
}

// Get 读取进度记录，未知键返回零值记录
func (l *MemoryLedger) Get(ctx context.Context, key string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	value, found := l.cache.Get(key)
	if !found {
		return Record{}, nil
	}
	rec := value.(Record)

	if needsHeal(rec) && rec.ResultFile != "" {
		rec.Done = true
		l.cache.Set(key, rec, gocache.DefaultExpiration)
	}

	return rec, nil
}

// Close 内存账本没有需要关闭的连接
func (l *MemoryLedger) Close() error {
	return nil
}

// 在包初始化时注册内存账本
func init() {
	RegisterLedger("memory", NewMemoryLedger)
}
