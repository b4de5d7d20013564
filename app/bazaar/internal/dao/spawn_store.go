package dao

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
)

// SpawnStore 频道刷新槽位的存储，作为多进程部署时的唯一事实来源
//
// 每个频道最多保存一个 ActiveSpawn。Take 以认领码做比较删除，保证同一刷新只会被取走一次。
type SpawnStore interface {
	// Save 写入刷新，覆盖频道内已有的刷新
	Save(ctx context.Context, spawn *model.ActiveSpawn, ttl time.Duration) error
	// Load 读取频道当前刷新，不存在返回 nil
	Load(ctx context.Context, channelID string) (*model.ActiveSpawn, error)
	// Take 当认领码一致时删除并返回刷新，否则返回 nil
	Take(ctx context.Context, channelID, code string) (*model.ActiveSpawn, error)
	// Restore 仅在槽位为空时放回刷新（认领落库失败时使用）
	Restore(ctx context.Context, spawn *model.ActiveSpawn, ttl time.Duration) (bool, error)
	// Remove 删除频道刷新
	Remove(ctx context.Context, channelID string) error
	// RemoveOlderThan 删除创建时间不晚于 cutoff 的刷新，返回删除数量
	RemoveOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

var _ SpawnStore = (*MemorySpawnStore)(nil)

// MemorySpawnStore 单进程内存实现
type MemorySpawnStore struct {
	mu     sync.Mutex
	spawns map[string]model.ActiveSpawn
}

// NewMemorySpawnStore 创建内存存储
func NewMemorySpawnStore() *MemorySpawnStore {
	return &MemorySpawnStore{spawns: make(map[string]model.ActiveSpawn)}
}

func (s *MemorySpawnStore) Save(_ context.Context, spawn *model.ActiveSpawn, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawns[spawn.ChannelID] = *spawn
	return nil
}

func (s *MemorySpawnStore) Load(_ context.Context, channelID string) (*model.ActiveSpawn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spawns[channelID]
	if !ok {
		return nil, nil
	}
	return &sp, nil
}

func (s *MemorySpawnStore) Take(_ context.Context, channelID, code string) (*model.ActiveSpawn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spawns[channelID]
	if !ok || sp.Code != code {
		return nil, nil
	}
	delete(s.spawns, channelID)
	return &sp, nil
}

func (s *MemorySpawnStore) Restore(_ context.Context, spawn *model.ActiveSpawn, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spawns[spawn.ChannelID]; ok {
		return false, nil
	}
	s.spawns[spawn.ChannelID] = *spawn
	return true, nil
}

func (s *MemorySpawnStore) Remove(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.spawns, channelID)
	return nil
}

func (s *MemorySpawnStore) RemoveOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sp := range s.spawns {
		if !sp.CreatedAt.After(cutoff) {
			delete(s.spawns, id)
			n++
		}
	}
	return n, nil
}
