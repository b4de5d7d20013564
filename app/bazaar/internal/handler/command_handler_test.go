package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/manager"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/service"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/lk2023060901/shardbazaar/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	repo   *repository.MemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	l := logger.NewNoop()

	collectibles := []*model.Collectible{
		{ID: 1, Name: "Pikachu", Tier: "common"},
		{ID: 2, Name: "Mewtwo", Tier: "rare"},
	}
	repo := repository.NewMemoryRepository(collectibles)
	require.NoError(t, repo.SaveChannel(ctx, &model.Channel{ChannelID: "g1", Kind: model.ChannelKindGroup, SpawnEnabled: true, SaleEnabled: true}))
	for _, acc := range []*model.Account{
		{PlayerID: "alice", Name: "Alice", Shards: 0},
		{PlayerID: "bob", Name: "Bob", Shards: 1000},
	} {
		require.NoError(t, repo.CreateAccount(ctx, acc))
	}
	now := time.Now()
	require.NoError(t, repo.InsertInstance(ctx, model.NewInstance(9001, "alice", collectibles[1], now)))
	require.NoError(t, repo.InsertInstance(ctx, model.NewInstance(9002, "alice", collectibles[0], now.Add(time.Second))))

	bm, err := metrics.New(nil)
	require.NoError(t, err)
	p, err := pool.New(nil)
	require.NoError(t, err)

	cfg := service.DefaultConfig()
	catalog := model.NewCatalog(collectibles)
	r := service.NewSeededRand(1)
	ids := idgen.NewSequence(0)
	msg := messenger.NewLogMessenger(repo, l)

	registry := manager.NewSpawnRegistry(l, dao.NewMemorySpawnStore(), nil)
	reaper := service.NewReaper(l, p, &cfg.Reaper)
	purchaser := service.NewPurchaser(l, repo, msg, p, catalog, bm)
	spawns := service.NewSpawnService(l, repo, registry, msg, service.NewSelector(catalog, cfg.Tiers, r), ids, r, bm)
	market := service.NewMarketService(l, repo, msg, purchaser, reaper, catalog, cfg.Tiers, ids, r, bm, &cfg.Market)
	local := service.NewLocalSaleService(l, repo, msg, purchaser, reaper, catalog, ids, r, bm, &cfg.LocalSale)
	t.Cleanup(func() {
		reaper.Stop()
		_ = p.Release()
	})

	srv, err := web.NewServer(&web.Config{Mode: gin.TestMode}, l)
	require.NoError(t, err)
	NewCommandHandler(l, spawns, market, local).Register(srv.Router())

	return &testServer{engine: srv.Router(), repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestCommandHandler_MarketFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/market/listings", ListRequest{SellerID: "alice", Index: 1, Price: 400})
	require.Equal(t, http.StatusOK, status, env.Message)
	var listing ListingView
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, int32(2), listing.Item.CollectibleID)

	status, env = s.do(t, http.MethodGet, "/api/v1/market?index=1", nil)
	require.Equal(t, http.StatusOK, status)
	var list []ListingView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, listing.Code, list[0].Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/market/purchases", PurchaseRequest{BuyerID: "alice", Code: listing.Code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SELF_PURCHASE", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/market/purchases", PurchaseRequest{BuyerID: "bob", Code: listing.Code})
	require.Equal(t, http.StatusOK, status, env.Message)
	var res PurchaseView
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(600), res.BuyerBalance)
	assert.True(t, res.SellerCredited)

	status, env = s.do(t, http.MethodPost, "/api/v1/market/purchases", PurchaseRequest{BuyerID: "bob", Code: listing.Code})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOT_AVAILABLE", env.Code)
}

func TestCommandHandler_ListRejections(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/market/listings", ListRequest{SellerID: "alice", Index: 2, Price: 10})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "TIER_TOO_LOW", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/market/listings", ListRequest{SellerID: "alice", Index: 1, Price: 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PRICE", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/market/listings", map[string]any{"seller_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, web.CodeInvalidParams, env.Code)
	assert.Contains(t, env.Message, "index")

	status, env = s.do(t, http.MethodGet, "/api/v1/market?index=5", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestCommandHandler_LocalSaleFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/channels/g1/sales", ListRequest{SellerID: "alice", Index: 2, Price: 15})
	require.Equal(t, http.StatusOK, status, env.Message)
	var sale SaleView
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.Equal(t, "active", sale.Status)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/sales", ListRequest{SellerID: "alice", Index: 1, Price: 15})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_ACTIVE", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/sales/cancel", CancelRequest{SellerID: "bob", Code: sale.Code})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/channels/g1/sales", nil)
	require.Equal(t, http.StatusOK, status)
	var list []SaleView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/sales/purchases", PurchaseRequest{BuyerID: "bob", Code: sale.Code})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/sales/purchases", PurchaseRequest{BuyerID: "bob", Code: sale.Code})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, env.Message, "no active sale found")

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/sales/cancel", CancelRequest{SellerID: "alice"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestCommandHandler_SpawnFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/channels/g1/spawn", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/spawn", ForceSpawnRequest{Target: "pikachu"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var sp SpawnView
	require.NoError(t, json.Unmarshal(env.Data, &sp))
	assert.Equal(t, "Pikachu", sp.Collectible.Name)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/spawn/claim", ClaimRequest{PlayerID: "bob", Name: "Mewtwo"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "WRONG_GUESS", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/g1/spawn/claim", ClaimRequest{PlayerID: "bob", Name: "  PIKACHU "})
	require.Equal(t, http.StatusOK, status, env.Message)
	var inst InstanceView
	require.NoError(t, json.Unmarshal(env.Data, &inst))
	assert.Equal(t, "bob", inst.OwnerID)

	// 无请求体时随机刷新
	status, _ = s.do(t, http.MethodPost, "/api/v1/channels/g1/spawn", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodPost, "/api/v1/channels/elsewhere/spawn", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "CHANNEL_NOT_ELIGIBLE", env.Code)
}
