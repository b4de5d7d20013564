package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func (h *harness) putSpawn(t *testing.T, channelID, code string, collectibleID int32) {
	t.Helper()
	require.NoError(t, h.registry.Put(context.Background(), &model.ActiveSpawn{
		ChannelID:   channelID,
		Collectible: *testCollectibles[collectibleID-1],
		Code:        code,
		CreatedAt:   h.clock.Now(),
	}))
}

func TestSpawn_ClaimByName(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "alice", 0)
	h.putSpawn(t, "g1", "ABCDE", pikachu)

	// 猜错不改变任何状态
	_, err := h.spawns.Claim(ctx, "alice", "g1", "raichu")
	assert.ErrorIs(t, err, ErrWrongGuess)
	_, err = h.spawns.Claim(ctx, "alice", "g1", "  pikachu ")
	assert.ErrorIs(t, err, ErrWrongGuess)

	sp, err := h.spawns.GetActiveSpawn(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABCDE", sp.Code)

	inst, err := h.spawns.Claim(ctx, "alice", "g1", "pikachu")
	require.NoError(t, err)
	assert.Equal(t, pikachu, inst.CollectibleID)
	assert.Equal(t, "alice", inst.OwnerID)

	_, err = h.spawns.GetActiveSpawn(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)

	owned := h.collection(t, "alice")
	require.Len(t, owned, 1)
	assert.Equal(t, inst.ID, owned[0].ID)
	assert.Equal(t, 1, h.msg.received("g1", "Alice caught Pikachu"))

	_, err = h.spawns.Claim(ctx, "alice", "g1", "pikachu")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSpawn_ClaimRequiresRegistration(t *testing.T) {
	h := newHarness(t)
	h.putSpawn(t, "g1", "ABCDE", pikachu)

	_, err := h.spawns.Claim(context.Background(), "stranger", "g1", "Pikachu")
	assert.ErrorIs(t, err, ErrNotRegistered)

	sp, err := h.spawns.GetActiveSpawn(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABCDE", sp.Code)
}

func TestSpawn_ConcurrentClaimSingleWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.putSpawn(t, "g1", "ABCDE", raichu)

	const players = 8
	for i := 0; i < players; i++ {
		h.register(t, buyerName(i), 0)
	}

	var (
		mu   sync.Mutex
		wins int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < players; i++ {
		id := buyerName(i)
		g.Go(func() error {
			_, err := h.spawns.Claim(gctx, id, "g1", "Raichu")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return nil
			}
			// 输家要么在比较删除时落空，要么读到空槽位
			assert.True(t, errors.Is(err, ErrNotAvailable) || errors.Is(err, ErrNotFound), err)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, wins)

	var owned int
	for i := 0; i < players; i++ {
		owned += len(h.collection(t, buyerName(i)))
	}
	assert.Equal(t, 1, owned)
}

type failingIDs struct{}

func (failingIDs) NextID() (int64, error) { return 0, errors.New("clock moved backwards") }

func TestSpawn_ClaimFailureRestoresSpawn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "alice", 0)
	h.putSpawn(t, "g1", "ABCDE", pikachu)
	h.spawns.ids = failingIDs{}

	_, err := h.spawns.Claim(ctx, "alice", "g1", "Pikachu")
	require.Error(t, err)
	assert.Equal(t, "INTERNAL", ErrorCode(err))

	sp, err := h.spawns.GetActiveSpawn(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABCDE", sp.Code)
	assert.Empty(t, h.collection(t, "alice"))
}

func TestSpawn_ForceSpawnReplaces(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.spawns.ForceSpawn(ctx, "g1", "mewtwo")
	require.NoError(t, err)
	assert.Equal(t, "Mewtwo", first.Collectible.Name)
	assert.Len(t, first.Code, SpawnCodeLength)

	second, err := h.spawns.ForceSpawn(ctx, "g1", "4")
	require.NoError(t, err)
	assert.Equal(t, "Mew", second.Collectible.Name)

	// 同一频道只保留最新的刷新
	sp, err := h.spawns.GetActiveSpawn(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, second.Code, sp.Code)

	ch, err := h.repo.GetChannel(ctx, "g1")
	require.NoError(t, err)
	assert.Contains(t, ch.LastSpawnSummary, second.Code)
	assert.Equal(t, 2, h.msg.received("g1", "appeared"))
}

func TestSpawn_Rejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.spawns.ForceSpawn(ctx, "g3", "")
	assert.ErrorIs(t, err, ErrChannelNotEligible)

	_, err = h.spawns.ForceSpawn(ctx, "someone", "")
	assert.ErrorIs(t, err, ErrChannelNotEligible)

	_, err = h.spawns.ForceSpawn(ctx, "g1", "Missingno")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.spawns.GetActiveSpawn(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSpawn_AnnouncementFailureKeepsSpawn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.msg.setFail(errors.New("gateway down"))

	sp, err := h.spawns.ForceSpawn(ctx, "g2", "")
	require.NoError(t, err)

	got, err := h.spawns.GetActiveSpawn(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, sp.Code, got.Code)
}
