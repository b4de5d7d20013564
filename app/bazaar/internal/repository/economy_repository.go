package repository

import (
	"context"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
)

// EconomyRepository 经济系统仓储：账户、收藏、频道、挂单
//
// 事务外调用直接作用于连接池；WithTx 回调中得到的实例绑定同一事务，
// 嵌套调用 WithTx 复用外层事务。
type EconomyRepository interface {
	// WithTx 在事务中执行 fn，fn 返回错误时整体回滚
	WithTx(ctx context.Context, fn func(repo EconomyRepository) error) error

	// ===== 账户 =====
	GetAccount(ctx context.Context, playerID string) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, playerID string) (*model.Account, error)
	CreateAccount(ctx context.Context, acc *model.Account) error
	AdjustShards(ctx context.Context, playerID string, delta int64) error

	// ===== 收藏 =====
	ListCollection(ctx context.Context, ownerID string) ([]*model.Instance, error)
	TakeInstance(ctx context.Context, ownerID string, index int) (*model.Instance, error)
	InsertInstance(ctx context.Context, inst *model.Instance) error

	// ===== 定义与频道 =====
	ListCollectibles(ctx context.Context) ([]*model.Collectible, error)
	GetChannel(ctx context.Context, channelID string) (*model.Channel, error)
	ListSpawnChannels(ctx context.Context) ([]*model.Channel, error)
	SaveChannel(ctx context.Context, ch *model.Channel) error
	SetLastSpawnSummary(ctx context.Context, channelID, summary string, now time.Time) error

	// ===== 全局商店 =====
	LockMarket(ctx context.Context) error
	CountMarket(ctx context.Context) (int, error)
	MarketCodeExists(ctx context.Context, code string) (bool, error)
	InsertMarketListing(ctx context.Context, l *model.MarketListing) error
	TakeMarketListing(ctx context.Context, code string, now time.Time) (*model.MarketListing, error)
	TakeExpiredMarketListing(ctx context.Context, id int64, now time.Time) (*model.MarketListing, error)
	ListMarket(ctx context.Context) ([]*model.MarketListing, error)
	ListExpiredMarket(ctx context.Context, now time.Time) ([]*model.MarketListing, error)

	// ===== 频道出售 =====
	HasActiveLocalSale(ctx context.Context, sellerID, channelID string) (bool, error)
	LocalCodeExists(ctx context.Context, channelID, code string) (bool, error)
	InsertLocalSale(ctx context.Context, s *model.LocalSale) error
	MarkLocalSaleSold(ctx context.Context, channelID, code, buyerID string, now time.Time) (*model.LocalSale, error)
	SetLocalSaleBuyerName(ctx context.Context, id int64, buyerName string) error
	CloseLocalSale(ctx context.Context, id int64, status model.SaleStatus, now time.Time) (*model.LocalSale, error)
	GetActiveLocalSaleBySeller(ctx context.Context, sellerID, channelID string) (*model.LocalSale, error)
	GetActiveLocalSaleByCode(ctx context.Context, channelID, code string) (*model.LocalSale, error)
	ListActiveLocalSales(ctx context.Context, channelID string) ([]*model.LocalSale, error)
	ListExpiredLocalSaleIDs(ctx context.Context, channelID string, now time.Time) ([]int64, error)
}
