package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/manager"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/stretchr/testify/require"
)

var testCollectibles = []*model.Collectible{
	{ID: 1, Name: "Pikachu", Tier: "common"},
	{ID: 2, Name: "Raichu", Tier: "uncommon"},
	{ID: 3, Name: "Mewtwo", Tier: "rare"},
	{ID: 4, Name: "Mew", Tier: "legendary"},
}

const (
	pikachu int32 = 1
	raichu  int32 = 2
	mewtwo  int32 = 3
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMessage struct {
	channelID string
	content   string
}

// recordingMessenger 记录发出的消息，频道资格走内存仓储
type recordingMessenger struct {
	*messenger.LogMessenger

	mu   sync.Mutex
	sent []sentMessage
	fail error
}

func (m *recordingMessenger) SendMessage(_ context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, content: content})
	return nil
}

func (m *recordingMessenger) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// received 发往 channelID 且包含 substr 的消息数
func (m *recordingMessenger) received(channelID, substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.channelID == channelID && strings.Contains(s.content, substr) {
			n++
		}
	}
	return n
}

type harness struct {
	repo      *repository.MemoryRepository
	msg       *recordingMessenger
	clock     *testClock
	ids       *idgen.Sequence
	cfg       *Config
	registry  *manager.SpawnRegistry
	reaper    *Reaper
	purchaser *Purchaser
	spawns    *SpawnService
	market    *MarketService
	local     *LocalSaleService
}

// newHarness 内存仓储上的完整服务；频道 g1 刷新+出售，g2 仅刷新，g3 仅出售
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, dao.NewMemorySpawnStore())
}

// newHarnessWithStore 同 newHarness，刷新槽位使用指定存储
func newHarnessWithStore(t *testing.T, store dao.SpawnStore) *harness {
	t.Helper()
	ctx := context.Background()
	l := logger.NewNoop()

	repo := repository.NewMemoryRepository(testCollectibles)
	for _, ch := range []*model.Channel{
		{ChannelID: "g1", Kind: model.ChannelKindGroup, SpawnEnabled: true, SaleEnabled: true},
		{ChannelID: "g2", Kind: model.ChannelKindGroup, SpawnEnabled: true},
		{ChannelID: "g3", Kind: model.ChannelKindGroup, SaleEnabled: true},
	} {
		require.NoError(t, repo.SaveChannel(ctx, ch))
	}

	// 时钟从真实时间起步，刷新槽位的过期判断使用真实时间
	clock := &testClock{now: time.Now().Truncate(time.Second)}
	msg := &recordingMessenger{LogMessenger: messenger.NewLogMessenger(repo, l)}

	bm, err := metrics.New(nil)
	require.NoError(t, err)
	p, err := pool.New(&pool.Config{Size: 8, ReleaseTimeout: time.Second})
	require.NoError(t, err)

	cfg := DefaultConfig()
	catalog := model.NewCatalog(testCollectibles)
	r := NewSeededRand(42)
	ids := idgen.NewSequence(0)

	registry := manager.NewSpawnRegistry(l, store, manager.DefaultRegistryConfig())
	reaper := NewReaper(l, p, &cfg.Reaper)
	purchaser := NewPurchaser(l, repo, msg, p, catalog, bm)
	spawns := NewSpawnService(l, repo, registry, msg, NewSelector(catalog, cfg.Tiers, r), ids, r, bm)
	market := NewMarketService(l, repo, msg, purchaser, reaper, catalog, cfg.Tiers, ids, r, bm, &cfg.Market)
	local := NewLocalSaleService(l, repo, msg, purchaser, reaper, catalog, ids, r, bm, &cfg.LocalSale)

	purchaser.now = clock.Now
	spawns.now = clock.Now
	market.now = clock.Now
	local.now = clock.Now

	t.Cleanup(func() {
		reaper.Stop()
		_ = p.Release()
	})

	return &harness{
		repo:      repo,
		msg:       msg,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		registry:  registry,
		reaper:    reaper,
		purchaser: purchaser,
		spawns:    spawns,
		market:    market,
		local:     local,
	}
}

func (h *harness) register(t *testing.T, playerID string, shards int64) {
	t.Helper()
	require.NoError(t, h.repo.CreateAccount(context.Background(), &model.Account{
		PlayerID:  playerID,
		Name:      strings.ToUpper(playerID[:1]) + playerID[1:],
		Shards:    shards,
		CreatedAt: h.clock.Now(),
	}))
}

// give 发放一个实例；每次推进一秒保证收藏顺序
func (h *harness) give(t *testing.T, ownerID string, collectibleID int32) *model.Instance {
	t.Helper()
	id, err := h.ids.NextID()
	require.NoError(t, err)
	c := testCollectibles[collectibleID-1]
	inst := model.NewInstance(id, ownerID, c, h.clock.Now())
	require.NoError(t, h.repo.InsertInstance(context.Background(), inst))
	h.clock.Advance(time.Second)
	return inst
}

func (h *harness) shards(t *testing.T, playerID string) int64 {
	t.Helper()
	acc, err := h.repo.GetAccount(context.Background(), playerID)
	require.NoError(t, err)
	return acc.Shards
}

func (h *harness) collection(t *testing.T, playerID string) []*model.Instance {
	t.Helper()
	list, err := h.repo.ListCollection(context.Background(), playerID)
	require.NoError(t, err)
	return list
}

func instanceIDs(list []*model.Instance) []int64 {
	ids := make([]int64, 0, len(list))
	for _, inst := range list {
		ids = append(ids, inst.ID)
	}
	return ids
}
