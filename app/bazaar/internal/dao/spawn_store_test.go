package dao

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/database/redis"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpawn(channelID, code string, at time.Time) *model.ActiveSpawn {
	return &model.ActiveSpawn{
		ChannelID:   channelID,
		Collectible: model.Collectible{ID: 25, Name: "Pikachu", Tier: "rare", Evolving: true},
		Code:        code,
		CreatedAt:   at.Truncate(time.Millisecond),
	}
}

func spawnStores(t *testing.T) map[string]SpawnStore {
	stores := map[string]SpawnStore{"memory": NewMemorySpawnStore()}

	if addr := os.Getenv("SHARDBAZAAR_TEST_REDIS_ADDR"); addr != "" {
		c, err := redis.NewClient(&redis.Config{Addr: addr, DB: 15})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		stores["redis"] = NewRedisSpawnStore(c, logger.NewNoop())
	}
	return stores
}

// 每个用例使用独立频道，避免 redis 中残留数据相互影响
func uniqueChannel(name string) string {
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
}

func TestSpawnStore_SaveLoadTake(t *testing.T) {
	ctx := context.Background()
	for name, store := range spawnStores(t) {
		t.Run(name, func(t *testing.T) {
			ch := uniqueChannel("save")
			sp := testSpawn(ch, "ABCDE", time.Now())

			got, err := store.Load(ctx, ch)
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, store.Save(ctx, sp, time.Hour))
			got, err = store.Load(ctx, ch)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "ABCDE", got.Code)
			assert.Equal(t, "Pikachu", got.Collectible.Name)
			assert.True(t, sp.CreatedAt.Equal(got.CreatedAt))

			// 认领码不一致不删除
			got, err = store.Take(ctx, ch, "ZZZZZ")
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = store.Take(ctx, ch, "ABCDE")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, int32(25), got.Collectible.ID)

			got, err = store.Load(ctx, ch)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSpawnStore_SaveSupersedes(t *testing.T) {
	ctx := context.Background()
	for name, store := range spawnStores(t) {
		t.Run(name, func(t *testing.T) {
			ch := uniqueChannel("supersede")
			require.NoError(t, store.Save(ctx, testSpawn(ch, "AAAAA", time.Now()), time.Hour))
			require.NoError(t, store.Save(ctx, testSpawn(ch, "BBBBB", time.Now()), time.Hour))

			got, err := store.Take(ctx, ch, "AAAAA")
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = store.Load(ctx, ch)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "BBBBB", got.Code)
		})
	}
}

func TestSpawnStore_ConcurrentTake(t *testing.T) {
	ctx := context.Background()
	for name, store := range spawnStores(t) {
		t.Run(name, func(t *testing.T) {
			ch := uniqueChannel("race")
			require.NoError(t, store.Save(ctx, testSpawn(ch, "RACE1", time.Now()), time.Hour))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got, err := store.Take(ctx, ch, "RACE1")
					if err == nil && got != nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestSpawnStore_Restore(t *testing.T) {
	ctx := context.Background()
	for name, store := range spawnStores(t) {
		t.Run(name, func(t *testing.T) {
			ch := uniqueChannel("restore")
			sp := testSpawn(ch, "RSTR1", time.Now())

			ok, err := store.Restore(ctx, sp, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok)

			// 槽位被新刷新占用时不覆盖
			newer := testSpawn(ch, "NEWER", time.Now())
			require.NoError(t, store.Save(ctx, newer, time.Hour))
			ok, err = store.Restore(ctx, sp, time.Hour)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := store.Load(ctx, ch)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "NEWER", got.Code)
		})
	}
}

func TestSpawnStore_RemoveOlderThan(t *testing.T) {
	ctx := context.Background()
	for name, store := range spawnStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now()
			oldCh, freshCh := uniqueChannel("old"), uniqueChannel("fresh")
			require.NoError(t, store.Save(ctx, testSpawn(oldCh, "OLD01", now.Add(-2*time.Hour)), time.Hour))
			require.NoError(t, store.Save(ctx, testSpawn(freshCh, "NEW01", now), time.Hour))

			n, err := store.RemoveOlderThan(ctx, now.Add(-time.Hour))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 1)

			got, err := store.Load(ctx, oldCh)
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = store.Load(ctx, freshCh)
			require.NoError(t, err)
			assert.NotNil(t, got)

			require.NoError(t, store.Remove(ctx, freshCh))
			got, err = store.Load(ctx, freshCh)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}
