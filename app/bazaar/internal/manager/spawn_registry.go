package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// RegistryConfig 刷新槽位配置
type RegistryConfig struct {
	// StaleAfter 刷新存活时间，超过后视为不存在并被回收
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// CacheTTL 本地读缓存有效期，0 表示不缓存
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DefaultRegistryConfig 默认配置
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		StaleAfter: time.Hour,
		CacheTTL:   2 * time.Second,
	}
}

type cachedSpawn struct {
	spawn    *model.ActiveSpawn // nil 表示槽位为空
	loadedAt time.Time
}

// SpawnRegistry 频道刷新槽位管理器
//
// SpawnStore 是唯一事实来源，本地 map 只做短期读缓存；
// 认领等写路径总是直接访问 store。
type SpawnRegistry struct {
	logger logger.Logger
	store  dao.SpawnStore
	config *RegistryConfig
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedSpawn // channelID -> spawn
	group singleflight.Group
}

// NewSpawnRegistry 创建刷新槽位管理器
func NewSpawnRegistry(l logger.Logger, store dao.SpawnStore, cfg *RegistryConfig) *SpawnRegistry {
	if cfg == nil {
		cfg = DefaultRegistryConfig()
	}
	return &SpawnRegistry{
		logger: l.Named("manager.spawn_registry"),
		store:  store,
		config: cfg,
		now:    time.Now,
		cache:  make(map[string]cachedSpawn),
	}
}

// StaleAfter 刷新存活时间
func (r *SpawnRegistry) StaleAfter() time.Duration {
	return r.config.StaleAfter
}

// Put 写入新刷新，覆盖频道内旧刷新
func (r *SpawnRegistry) Put(ctx context.Context, spawn *model.ActiveSpawn) error {
	if err := r.store.Save(ctx, spawn, r.config.StaleAfter); err != nil {
		return fmt.Errorf("save spawn: %w", err)
	}
	r.setCache(spawn.ChannelID, spawn)

	r.logger.Debug("spawn registered", "channel_id", spawn.ChannelID, "code", spawn.Code)
	return nil
}

// Get 读取频道当前刷新（允许读缓存），过期刷新视为不存在
func (r *SpawnRegistry) Get(ctx context.Context, channelID string) (*model.ActiveSpawn, error) {
	r.mu.RLock()
	entry, ok := r.cache[channelID]
	r.mu.RUnlock()
	if ok && r.config.CacheTTL > 0 && r.now().Sub(entry.loadedAt) < r.config.CacheTTL {
		return r.fresh(entry.spawn), nil
	}

	v, err, _ := r.group.Do(channelID, func() (any, error) {
		sp, err := r.store.Load(ctx, channelID)
		if err != nil {
			return nil, err
		}
		r.setCache(channelID, sp)
		return sp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load spawn: %w", err)
	}
	return r.fresh(v.(*model.ActiveSpawn)), nil
}

// Load 绕过缓存直接读取
func (r *SpawnRegistry) Load(ctx context.Context, channelID string) (*model.ActiveSpawn, error) {
	sp, err := r.store.Load(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("load spawn: %w", err)
	}
	r.setCache(channelID, sp)
	return r.fresh(sp), nil
}

// Take 认领码一致时取走刷新，被他人抢先或已被替换时返回 nil
func (r *SpawnRegistry) Take(ctx context.Context, channelID, code string) (*model.ActiveSpawn, error) {
	sp, err := r.store.Take(ctx, channelID, code)
	r.invalidate(channelID)
	if err != nil {
		return nil, fmt.Errorf("take spawn: %w", err)
	}
	return sp, nil
}

// Restore 认领落库失败时放回刷新，槽位已被新刷新占用则放弃
func (r *SpawnRegistry) Restore(ctx context.Context, spawn *model.ActiveSpawn) (bool, error) {
	remaining := r.config.StaleAfter - r.now().Sub(spawn.CreatedAt)
	if remaining <= 0 {
		return false, nil
	}
	ok, err := r.store.Restore(ctx, spawn, remaining)
	r.invalidate(spawn.ChannelID)
	if err != nil {
		return false, fmt.Errorf("restore spawn: %w", err)
	}
	return ok, nil
}

// Remove 清空频道槽位
func (r *SpawnRegistry) Remove(ctx context.Context, channelID string) error {
	r.invalidate(channelID)
	if err := r.store.Remove(ctx, channelID); err != nil {
		return fmt.Errorf("remove spawn: %w", err)
	}
	return nil
}

// ReapStale 回收超过存活时间的刷新，返回回收数量
func (r *SpawnRegistry) ReapStale(ctx context.Context) (int, error) {
	n, err := r.store.RemoveOlderThan(ctx, r.now().Add(-r.config.StaleAfter))

	// 1. 清理本地缓存中的过期项
	r.mu.Lock()
	for id, entry := range r.cache {
		if entry.spawn != nil && entry.spawn.StaleAt(r.now(), r.config.StaleAfter) {
			delete(r.cache, id)
		}
	}
	r.mu.Unlock()

	if err != nil {
		return n, fmt.Errorf("reap stale spawns: %w", err)
	}
	if n > 0 {
		r.logger.Info("stale spawns reaped", "count", n)
	}
	return n, nil
}

func (r *SpawnRegistry) fresh(sp *model.ActiveSpawn) *model.ActiveSpawn {
	if sp == nil || sp.StaleAt(r.now(), r.config.StaleAfter) {
		return nil
	}
	cp := *sp
	return &cp
}

func (r *SpawnRegistry) setCache(channelID string, sp *model.ActiveSpawn) {
	if r.config.CacheTTL <= 0 {
		return
	}
	r.mu.Lock()
	r.cache[channelID] = cachedSpawn{spawn: sp, loadedAt: r.now()}
	r.mu.Unlock()
}

func (r *SpawnRegistry) invalidate(channelID string) {
	r.mu.Lock()
	delete(r.cache, channelID)
	r.mu.Unlock()
}
