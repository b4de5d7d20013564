package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(cacheTTL time.Duration) (*SpawnRegistry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewSpawnRegistry(logger.NewNoop(), dao.NewMemorySpawnStore(), &RegistryConfig{
		StaleAfter: time.Hour,
		CacheTTL:   cacheTTL,
	})
	r.now = clock.Now
	return r, clock
}

func spawnAt(channelID, code string, at time.Time) *model.ActiveSpawn {
	return &model.ActiveSpawn{
		ChannelID:   channelID,
		Collectible: model.Collectible{ID: 1, Name: "Pikachu"},
		Code:        code,
		CreatedAt:   at,
	}
}

func TestSpawnRegistry_SingleSlotPerChannel(t *testing.T) {
	ctx := context.Background()
	r, clock := newTestRegistry(time.Second)

	require.NoError(t, r.Put(ctx, spawnAt("g1", "AAAAA", clock.Now())))
	require.NoError(t, r.Put(ctx, spawnAt("g1", "BBBBB", clock.Now())))

	got, err := r.Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BBBBB", got.Code)

	taken, err := r.Take(ctx, "g1", "AAAAA")
	require.NoError(t, err)
	assert.Nil(t, taken)

	taken, err = r.Take(ctx, "g1", "BBBBB")
	require.NoError(t, err)
	require.NotNil(t, taken)

	got, err = r.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSpawnRegistry_StaleIsAbsentAndReaped(t *testing.T) {
	ctx := context.Background()
	r, clock := newTestRegistry(0)

	require.NoError(t, r.Put(ctx, spawnAt("g1", "AAAAA", clock.Now())))
	clock.Advance(59 * time.Minute)
	got, err := r.Get(ctx, "g1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	clock.Advance(2 * time.Minute)
	got, err = r.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := r.ReapStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSpawnRegistry_Restore(t *testing.T) {
	ctx := context.Background()
	r, clock := newTestRegistry(time.Second)
	sp := spawnAt("g1", "AAAAA", clock.Now())
	require.NoError(t, r.Put(ctx, sp))

	_, err := r.Take(ctx, "g1", "AAAAA")
	require.NoError(t, err)

	ok, err := r.Restore(ctx, sp)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAAAA", got.Code)

	// 已过期的刷新不再放回
	_, err = r.Take(ctx, "g1", "AAAAA")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	ok, err = r.Restore(ctx, sp)
	require.NoError(t, err)
	assert.False(t, ok)
}
