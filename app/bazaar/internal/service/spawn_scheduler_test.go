package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelay(t *testing.T) {
	offsets := []int{0, 30, 45, 50}
	at := func(h, m, s int) time.Time { return time.Date(2026, 3, 1, h, m, s, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"before first offset in hour", at(12, 10, 0), 20 * time.Minute},
		{"between offsets", at(12, 31, 15), 13*time.Minute + 45*time.Second},
		{"exactly on offset skips to next", at(12, 45, 0), 5 * time.Minute},
		{"after last offset wraps", at(12, 55, 0), 5 * time.Minute},
		{"last second of hour", at(12, 59, 59), time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextDelay(tc.now, offsets))
		})
	}

	// 单一偏移时落在下一小时
	assert.Equal(t, 50*time.Minute, NextDelay(at(9, 20, 0), []int{10}))
}

func TestMinuteSchedule(t *testing.T) {
	s, err := NewMinuteSchedule([]int{45, 0, 30, 30})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 30, 45}, s.Offsets())

	now := time.Date(2026, 3, 1, 8, 40, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 45, 0, 0, time.UTC), s.Next(now))

	require.NoError(t, s.SetOffsets([]int{5}))
	assert.Equal(t, time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC), s.Next(now))

	// 非法偏移不覆盖当前配置
	assert.Error(t, s.SetOffsets([]int{60}))
	assert.Error(t, s.SetOffsets(nil))
	assert.Equal(t, []int{5}, s.Offsets())
}

type fakeGuard struct {
	held     bool
	err      error
	unlocked int
}

func (g *fakeGuard) TryLock(context.Context) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return !g.held, nil
}

func (g *fakeGuard) Unlock(context.Context) error {
	g.unlocked++
	return nil
}

func newTestScheduler(t *testing.T, h *harness, guard CycleGuard) *SpawnScheduler {
	t.Helper()
	cfg := h.cfg.Spawn
	cfg.Pacing = 0
	s, err := NewSpawnScheduler(logger.NewNoop(), h.spawns, h.repo, &cfg, guard)
	require.NoError(t, err)
	return s
}

func TestSpawnScheduler_RunCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	guard := &fakeGuard{}
	s := newTestScheduler(t, h, guard)

	report, err := s.RunCycle(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Channels) // g1, g2
	assert.Equal(t, 2, report.Spawned)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, guard.unlocked)

	for _, ch := range []string{"g1", "g2"} {
		_, err := h.spawns.GetActiveSpawn(ctx, ch)
		assert.NoError(t, err, ch)
	}
	_, err = h.spawns.GetActiveSpawn(ctx, "g3")
	assert.ErrorIs(t, err, ErrNotFound)

	// 新周期替换旧刷新
	prev, err := h.registry.Load(ctx, "g1")
	require.NoError(t, err)
	_, err = s.RunCycle(ctx)
	require.NoError(t, err)
	next, err := h.registry.Load(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.False(t, next.CreatedAt.Before(prev.CreatedAt))
}

// failingSpawnStore 对指定频道的写入返回错误
type failingSpawnStore struct {
	*dao.MemorySpawnStore
	failChannel string
}

func (s *failingSpawnStore) Save(ctx context.Context, spawn *model.ActiveSpawn, ttl time.Duration) error {
	if spawn.ChannelID == s.failChannel {
		return errors.New("slot write failed")
	}
	return s.MemorySpawnStore.Save(ctx, spawn, ttl)
}

func TestSpawnScheduler_ChannelFailureDoesNotStopCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWithStore(t, &failingSpawnStore{MemorySpawnStore: dao.NewMemorySpawnStore(), failChannel: "g1"})
	s := newTestScheduler(t, h, &fakeGuard{})

	report, err := s.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Channels)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, report.Channels-1, report.Spawned)

	_, err = h.spawns.GetActiveSpawn(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
	sp, err := h.spawns.GetActiveSpawn(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, "g2", sp.ChannelID)
}

func TestSpawnScheduler_SkipsWhenGuardHeld(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	s := newTestScheduler(t, h, &fakeGuard{held: true})
	report, err := s.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.Spawned)

	s = newTestScheduler(t, h, &fakeGuard{err: errors.New("redis down")})
	_, err = s.RunCycle(ctx)
	assert.Error(t, err)

	_, err = h.spawns.GetActiveSpawn(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSpawnScheduler_UpdateOffsets(t *testing.T) {
	h := newHarness(t)
	s := newTestScheduler(t, h, nil)

	require.NoError(t, s.UpdateOffsets([]int{15, 5}))
	assert.Equal(t, []int{5, 15}, s.Offsets())
	assert.Error(t, s.UpdateOffsets([]int{-1}))
	assert.Equal(t, []int{5, 15}, s.Offsets())
}
