package repository

import (
	"context"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// DAOs 仓储依赖的表级 DAO
type DAOs struct {
	Account     *dao.AccountDAO
	Instance    *dao.InstanceDAO
	Channel     *dao.ChannelDAO
	Collectible *dao.CollectibleDAO
	Market      *dao.MarketDAO
	LocalSale   *dao.LocalSaleDAO
}

// economyRepositoryImpl postgres 实现；client 为 nil 表示处于事务中
type economyRepositoryImpl struct {
	client *postgres.Client
	q      postgres.Querier
	daos   *DAOs
	logger logger.Logger
}

// NewEconomyRepository 创建经济仓储
func NewEconomyRepository(client *postgres.Client, daos *DAOs, l logger.Logger) EconomyRepository {
	return &economyRepositoryImpl{
		client: client,
		q:      client.Querier(),
		daos:   daos,
		logger: l.Named("repository.economy"),
	}
}

func (r *economyRepositoryImpl) WithTx(ctx context.Context, fn func(repo EconomyRepository) error) error {
	if r.client == nil {
		return fn(r)
	}

	err := r.client.WithTxOptions(ctx, postgres.TxOptions{IsoLevel: postgres.TxIsolationLevelReadCommitted},
		func(tx postgres.Tx) error {
			return fn(&economyRepositoryImpl{q: tx, daos: r.daos, logger: r.logger})
		})
	if err != nil {
		err = mapErr(err)
		r.logger.Debug("transaction rolled back", "error", err)
	}
	return err
}

// ============ 账户 ============

func (r *economyRepositoryImpl) GetAccount(ctx context.Context, playerID string) (*model.Account, error) {
	acc, err := r.daos.Account.Get(ctx, r.q, playerID, false)
	return acc, mapErr(err)
}

func (r *economyRepositoryImpl) GetAccountForUpdate(ctx context.Context, playerID string) (*model.Account, error) {
	acc, err := r.daos.Account.Get(ctx, r.q, playerID, true)
	return acc, mapErr(err)
}

func (r *economyRepositoryImpl) CreateAccount(ctx context.Context, acc *model.Account) error {
	return mapErr(r.daos.Account.Create(ctx, r.q, acc))
}

func (r *economyRepositoryImpl) AdjustShards(ctx context.Context, playerID string, delta int64) error {
	return mapErr(r.daos.Account.AddShards(ctx, r.q, playerID, delta))
}

// ============ 收藏 ============

func (r *economyRepositoryImpl) ListCollection(ctx context.Context, ownerID string) ([]*model.Instance, error) {
	list, err := r.daos.Instance.ListByOwner(ctx, r.q, ownerID)
	return list, mapErr(err)
}

func (r *economyRepositoryImpl) TakeInstance(ctx context.Context, ownerID string, index int) (*model.Instance, error) {
	inst, err := r.daos.Instance.TakeByIndex(ctx, r.q, ownerID, index)
	return inst, mapErr(err)
}

func (r *economyRepositoryImpl) InsertInstance(ctx context.Context, inst *model.Instance) error {
	return mapErr(r.daos.Instance.Insert(ctx, r.q, inst))
}

// ============ 定义与频道 ============

func (r *economyRepositoryImpl) ListCollectibles(ctx context.Context) ([]*model.Collectible, error) {
	list, err := r.daos.Collectible.ListAll(ctx, r.q)
	return list, mapErr(err)
}

func (r *economyRepositoryImpl) GetChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	ch, err := r.daos.Channel.Get(ctx, r.q, channelID)
	return ch, mapErr(err)
}

func (r *economyRepositoryImpl) ListSpawnChannels(ctx context.Context) ([]*model.Channel, error) {
	list, err := r.daos.Channel.ListSpawnEnabled(ctx, r.q)
	return list, mapErr(err)
}

func (r *economyRepositoryImpl) SaveChannel(ctx context.Context, ch *model.Channel) error {
	return mapErr(r.daos.Channel.Upsert(ctx, r.q, ch))
}

func (r *economyRepositoryImpl) SetLastSpawnSummary(ctx context.Context, channelID, summary string, now time.Time) error {
	return mapErr(r.daos.Channel.SetLastSpawnSummary(ctx, r.q, channelID, summary, now))
}

// ============ 全局商店 ============

func (r *economyRepositoryImpl) LockMarket(ctx context.Context) error {
	return mapErr(r.daos.Market.Lock(ctx, r.q))
}

func (r *economyRepositoryImpl) CountMarket(ctx context.Context) (int, error) {
	n, err := r.daos.Market.Count(ctx, r.q)
	return n, mapErr(err)
}

func (r *economyRepositoryImpl) MarketCodeExists(ctx context.Context, code string) (bool, error) {
	ok, err := r.daos.Market.CodeExists(ctx, r.q, code)
	return ok, mapErr(err)
}

func (r *economyRepositoryImpl) InsertMarketListing(ctx context.Context, l *model.MarketListing) error {
	return mapErr(r.daos.Market.Insert(ctx, r.q, l))
}

func (r *economyRepositoryImpl) TakeMarketListing(ctx context.Context, code string, now time.Time) (*model.MarketListing, error) {
	l, err := r.daos.Market.TakeByCode(ctx, r.q, code, now)
	return l, mapErr(err)
}

func (r *economyRepositoryImpl) TakeExpiredMarketListing(ctx context.Context, id int64, now time.Time) (*model.MarketListing, error) {
	l, err := r.daos.Market.TakeExpired(ctx, r.q, id, now)
	return l, mapErr(err)
}

func (r *economyRepositoryImpl) ListMarket(ctx context.Context) ([]*model.MarketListing, error) {
	list, err := r.daos.Market.List(ctx, r.q)
	return list, mapErr(err)
}

func (r *economyRepositoryImpl) ListExpiredMarket(ctx context.Context, now time.Time) ([]*model.MarketListing, error) {
	list, err := r.daos.Market.ListExpired(ctx, r.q, now)
	return list, mapErr(err)
}

// ============ 频道出售 ============

func (r *economyRepositoryImpl) HasActiveLocalSale(ctx context.Context, sellerID, channelID string) (bool, error) {
	ok, err := r.daos.LocalSale.HasActive(ctx, r.q, sellerID, channelID)
	return ok, mapErr(err)
}

func (r *economyRepositoryImpl) LocalCodeExists(ctx context.Context, channelID, code string) (bool, error) {
	ok, err := r.daos.LocalSale.CodeExists(ctx, r.q, channelID, code)
	return ok, mapErr(err)
}

func (r *economyRepositoryImpl) InsertLocalSale(ctx context.Context, s *model.LocalSale) error {
	return mapErr(r.daos.LocalSale.Insert(ctx, r.q, s))
}

func (r *economyRepositoryImpl) MarkLocalSaleSold(ctx context.Context, channelID, code, buyerID string, now time.Time) (*model.LocalSale, error) {
	s, err := r.daos.LocalSale.MarkSold(ctx, r.q, channelID, code, buyerID, now)
	return s, mapErr(err)
}

func (r *economyRepositoryImpl) SetLocalSaleBuyerName(ctx context.Context, id int64, buyerName string) error {
	return mapErr(r.daos.LocalSale.SetBuyerName(ctx, r.q, id, buyerName))
}

// CloseLocalSale cancelled 只作用于未过期的出售，expired 只作用于已过期的出售
func (r *economyRepositoryImpl) CloseLocalSale(ctx context.Context, id int64, status model.SaleStatus, now time.Time) (*model.LocalSale, error) {
	s, err := r.daos.LocalSale.Close(ctx, r.q, id, status, now, status == model.SaleStatusCancelled)
	return s, mapErr(err)
}

func (r *economyRepositoryImpl) GetActiveLocalSaleBySeller(ctx context.Context, sellerID, channelID string) (*model.LocalSale, error) {
	s, err := r.daos.LocalSale.GetActiveBySeller(ctx, r.q, sellerID, channelID)
	return s, mapErr(err)
}

func (r *economyRepositoryImpl) GetActiveLocalSaleByCode(ctx context.Context, channelID, code string) (*model.LocalSale, error) {
	s, err := r.daos.LocalSale.GetActiveByCode(ctx, r.q, channelID, code)
	return s, mapErr(err)
}

func (r *economyRepositoryImpl) ListActiveLocalSales(ctx context.Context, channelID string) ([]*model.LocalSale, error) {
	list, err := r.daos.LocalSale.ListActive(ctx, r.q, channelID)
	return list, mapErr(err)
}

func (r *economyRepositoryImpl) ListExpiredLocalSaleIDs(ctx context.Context, channelID string, now time.Time) ([]int64, error) {
	ids, err := r.daos.LocalSale.ListExpiredIDs(ctx, r.q, channelID, now)
	return ids, mapErr(err)
}
