package dao

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// marketLockKey 全局商店容量检查使用的事务级 advisory lock
const marketLockKey int64 = 0x6d61726b6574

var marketColumns = []string{
	"id", "code", "instance_id", "collectible_id", "level", "exp", "obtained_at",
	"seller_id", "seller_name", "price", "created_at", "expires_at",
}

type marketRow struct {
	ID            int64     `db:"id"`
	Code          string    `db:"code"`
	InstanceID    int64     `db:"instance_id"`
	CollectibleID int32     `db:"collectible_id"`
	Level         int32     `db:"level"`
	Exp           int64     `db:"exp"`
	ObtainedAt    time.Time `db:"obtained_at"`
	SellerID      string    `db:"seller_id"`
	SellerName    string    `db:"seller_name"`
	Price         int64     `db:"price"`
	CreatedAt     time.Time `db:"created_at"`
	ExpiresAt     time.Time `db:"expires_at"`
}

func (r *marketRow) toModel() *model.MarketListing {
	return &model.MarketListing{
		ID:   r.ID,
		Code: r.Code,
		Item: model.Instance{
			ID:            r.InstanceID,
			OwnerID:       r.SellerID,
			CollectibleID: r.CollectibleID,
			Level:         r.Level,
			Exp:           r.Exp,
			ObtainedAt:    r.ObtainedAt,
		},
		SellerID:   r.SellerID,
		SellerName: r.SellerName,
		Price:      r.Price,
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func toMarketList(rows []*marketRow) []*model.MarketListing {
	list := make([]*model.MarketListing, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toModel())
	}
	return list
}

// MarketDAO 全局商店挂单数据访问对象
type MarketDAO struct {
	baseDAO
}

// NewMarketDAO 创建商店 DAO
func NewMarketDAO(l logger.Logger, m *metrics.BazaarMetrics) *MarketDAO {
	return &MarketDAO{baseDAO: newBaseDAO(l, m, "dao.market")}
}

// Lock 获取商店事务锁，串行化容量检查与上架
func (d *MarketDAO) Lock(ctx context.Context, q postgres.Querier) (err error) {
	start := time.Now()
	defer func() { d.observe("lock", start, err) }()

	_, err = postgres.Exec(ctx, q, "SELECT pg_advisory_xact_lock($1)", marketLockKey)
	return translate("lock market", err)
}

// Count 当前挂单数（含尚未清理的过期挂单）
func (d *MarketDAO) Count(ctx context.Context, q postgres.Querier) (n int, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	sql, args, err := qb.Select("COUNT(*)").From("market_listings").ToSql()
	if err != nil {
		return 0, translate("build count", err)
	}
	if err = q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, translate("count market", err)
	}
	return n, nil
}

// CodeExists 购买码是否已被占用
func (d *MarketDAO) CodeExists(ctx context.Context, q postgres.Querier, code string) (exists bool, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	sql, args, err := qb.Select("1").Prefix("SELECT EXISTS(").
		From("market_listings").Where(squirrel.Eq{"code": code}).
		Suffix(")").ToSql()
	if err != nil {
		return false, translate("build code exists", err)
	}
	if err = q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, translate("market code exists", err)
	}
	return exists, nil
}

// Insert 写入挂单
func (d *MarketDAO) Insert(ctx context.Context, q postgres.Querier, l *model.MarketListing) (err error) {
	start := time.Now()
	defer func() { d.observe("insert", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Insert("market_listings").
		Columns(marketColumns...).
		Values(l.ID, l.Code, l.Item.ID, l.Item.CollectibleID, l.Item.Level, l.Item.Exp, l.Item.ObtainedAt,
			l.SellerID, l.SellerName, l.Price, l.CreatedAt, l.ExpiresAt))
	if err = translate("insert market listing", err); err != nil {
		d.logger.Error("failed to insert market listing", "code", l.Code, "seller_id", l.SellerID, "error", err)
	}
	return err
}

// TakeByCode 原子删除购买码对应的未过期挂单并返回
func (d *MarketDAO) TakeByCode(ctx context.Context, q postgres.Querier, code string, now time.Time) (l *model.MarketListing, err error) {
	start := time.Now()
	defer func() { d.observe("delete", start, err) }()

	row, err := postgres.QueryOneBuilder[marketRow](ctx, q, qb.Delete("market_listings").
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Gt{"expires_at": now}).
		Suffix("RETURNING "+columnList(marketColumns)))
	if err = translate("take market listing", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// TakeExpired 原子删除指定的已过期挂单并返回，已被处理时返回 ErrNotFound
func (d *MarketDAO) TakeExpired(ctx context.Context, q postgres.Querier, id int64, now time.Time) (l *model.MarketListing, err error) {
	start := time.Now()
	defer func() { d.observe("delete", start, err) }()

	row, err := postgres.QueryOneBuilder[marketRow](ctx, q, qb.Delete("market_listings").
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		Suffix("RETURNING "+columnList(marketColumns)))
	if err = translate("take expired market listing", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// List 全部挂单，按上架时间排序
func (d *MarketDAO) List(ctx context.Context, q postgres.Querier) (list []*model.MarketListing, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	rows, err := postgres.QueryAllBuilder[marketRow](ctx, q, qb.Select(marketColumns...).
		From("market_listings").
		OrderBy("created_at", "id"))
	if err = translate("list market", err); err != nil {
		d.logger.Error("failed to list market", "error", err)
		return nil, err
	}
	return toMarketList(rows), nil
}

// ListExpired 已过期的挂单
func (d *MarketDAO) ListExpired(ctx context.Context, q postgres.Querier, now time.Time) (list []*model.MarketListing, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	rows, err := postgres.QueryAllBuilder[marketRow](ctx, q, qb.Select(marketColumns...).
		From("market_listings").
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at", "id"))
	if err = translate("list expired market", err); err != nil {
		return nil, err
	}
	return toMarketList(rows), nil
}
