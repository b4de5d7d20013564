package dao

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// ErrActiveSaleExists 卖家在该频道已有进行中的出售
var ErrActiveSaleExists = errors.New("dao: active local sale exists")

var localSaleColumns = []string{
	"id", "code", "channel_id", "instance_id", "collectible_id", "level", "exp", "obtained_at",
	"seller_id", "seller_name", "price", "status", "created_at", "expires_at",
	"buyer_id", "buyer_name", "sold_at",
}

type localSaleRow struct {
	ID            int64      `db:"id"`
	Code          string     `db:"code"`
	ChannelID     string     `db:"channel_id"`
	InstanceID    int64      `db:"instance_id"`
	CollectibleID int32      `db:"collectible_id"`
	Level         int32      `db:"level"`
	Exp           int64      `db:"exp"`
	ObtainedAt    time.Time  `db:"obtained_at"`
	SellerID      string     `db:"seller_id"`
	SellerName    string     `db:"seller_name"`
	Price         int64      `db:"price"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	ExpiresAt     time.Time  `db:"expires_at"`
	BuyerID       *string    `db:"buyer_id"`
	BuyerName     *string    `db:"buyer_name"`
	SoldAt        *time.Time `db:"sold_at"`
}

func (r *localSaleRow) toModel() *model.LocalSale {
	s := &model.LocalSale{
		ID:        r.ID,
		Code:      r.Code,
		ChannelID: r.ChannelID,
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
		Status:     model.SaleStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
		SoldAt:     r.SoldAt,
	}
	if r.BuyerID != nil {
		s.BuyerID = *r.BuyerID
	}
	if r.BuyerName != nil {
		s.BuyerName = *r.BuyerName
	}
	return s
}

// LocalSaleDAO 频道出售数据访问对象
type LocalSaleDAO struct {
	baseDAO
}

// NewLocalSaleDAO 创建频道出售 DAO
func NewLocalSaleDAO(l logger.Logger, m *metrics.BazaarMetrics) *LocalSaleDAO {
	return &LocalSaleDAO{baseDAO: newBaseDAO(l, m, "dao.local_sale")}
}

func activeIn(channelID string) squirrel.Eq {
	return squirrel.Eq{"channel_id": channelID, "status": string(model.SaleStatusActive)}
}

// HasActive 卖家在频道内是否有进行中的出售
func (d *LocalSaleDAO) HasActive(ctx context.Context, q postgres.Querier, sellerID, channelID string) (exists bool, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	sql, args, err := qb.Select("1").Prefix("SELECT EXISTS(").
		From("local_sales").
		Where(activeIn(channelID)).
		Where(squirrel.Eq{"seller_id": sellerID}).
		Suffix(")").ToSql()
	if err != nil {
		return false, translate("build has active", err)
	}
	if err = q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, translate("has active local sale", err)
	}
	return exists, nil
}

// CodeExists 频道内进行中出售是否占用该购买码
func (d *LocalSaleDAO) CodeExists(ctx context.Context, q postgres.Querier, channelID, code string) (exists bool, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	sql, args, err := qb.Select("1").Prefix("SELECT EXISTS(").
		From("local_sales").
		Where(activeIn(channelID)).
		Where(squirrel.Eq{"code": code}).
		Suffix(")").ToSql()
	if err != nil {
		return false, translate("build code exists", err)
	}
	if err = q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, translate("local code exists", err)
	}
	return exists, nil
}

// Insert 写入出售记录；(seller, channel) 唯一冲突返回 ErrActiveSaleExists
func (d *LocalSaleDAO) Insert(ctx context.Context, q postgres.Querier, s *model.LocalSale) (err error) {
	start := time.Now()
	defer func() { d.observe("insert", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Insert("local_sales").
		Columns(localSaleColumns[:14]...).
		Values(s.ID, s.Code, s.ChannelID, s.Item.ID, s.Item.CollectibleID, s.Item.Level, s.Item.Exp, s.Item.ObtainedAt,
			s.SellerID, s.SellerName, s.Price, string(s.Status), s.CreatedAt, s.ExpiresAt))
	if postgres.IsUniqueViolation(err, constraintOneActiveSale) {
		return ErrActiveSaleExists
	}
	if err = translate("insert local sale", err); err != nil {
		d.logger.Error("failed to insert local sale", "code", s.Code, "channel_id", s.ChannelID, "error", err)
	}
	return err
}

// MarkSold 原子地将频道内未过期的进行中出售改为 sold 并返回
func (d *LocalSaleDAO) MarkSold(ctx context.Context, q postgres.Querier, channelID, code, buyerID string, now time.Time) (s *model.LocalSale, err error) {
	start := time.Now()
	defer func() { d.observe("update", start, err) }()

	row, err := postgres.QueryOneBuilder[localSaleRow](ctx, q, qb.Update("local_sales").
		Set("status", string(model.SaleStatusSold)).
		Set("buyer_id", buyerID).
		Set("sold_at", now).
		Where(activeIn(channelID)).
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Gt{"expires_at": now}).
		Suffix("RETURNING "+columnList(localSaleColumns)))
	if err = translate("mark local sale sold", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// SetBuyerName 补写成交记录的买家名称
func (d *LocalSaleDAO) SetBuyerName(ctx context.Context, q postgres.Querier, id int64, buyerName string) (err error) {
	start := time.Now()
	defer func() { d.observe("update", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Update("local_sales").
		Set("buyer_name", buyerName).
		Where(squirrel.Eq{"id": id}))
	return translate("set buyer name", err)
}

// Close 将进行中的出售置为终态（expired / cancelled）并返回
//
// unexpiredOnly 为 true 时只匹配未过期记录（撤回），否则只匹配已过期记录（回收）。
func (d *LocalSaleDAO) Close(ctx context.Context, q postgres.Querier, id int64, status model.SaleStatus, now time.Time, unexpiredOnly bool) (s *model.LocalSale, err error) {
	start := time.Now()
	defer func() { d.observe("update", start, err) }()

	b := qb.Update("local_sales").
		Set("status", string(status)).
		Where(squirrel.Eq{"id": id, "status": string(model.SaleStatusActive)})
	if unexpiredOnly {
		b = b.Where(squirrel.Gt{"expires_at": now})
	} else {
		b = b.Where(squirrel.LtOrEq{"expires_at": now})
	}

	row, err := postgres.QueryOneBuilder[localSaleRow](ctx, q, b.Suffix("RETURNING "+columnList(localSaleColumns)))
	if err = translate("close local sale", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// GetActiveBySeller 卖家在频道内进行中的出售
func (d *LocalSaleDAO) GetActiveBySeller(ctx context.Context, q postgres.Querier, sellerID, channelID string) (s *model.LocalSale, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	row, err := postgres.QueryOneBuilder[localSaleRow](ctx, q, qb.Select(localSaleColumns...).
		From("local_sales").
		Where(activeIn(channelID)).
		Where(squirrel.Eq{"seller_id": sellerID}))
	if err = translate("get active local sale by seller", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// GetActiveByCode 频道内购买码对应的进行中出售
func (d *LocalSaleDAO) GetActiveByCode(ctx context.Context, q postgres.Querier, channelID, code string) (s *model.LocalSale, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	row, err := postgres.QueryOneBuilder[localSaleRow](ctx, q, qb.Select(localSaleColumns...).
		From("local_sales").
		Where(activeIn(channelID)).
		Where(squirrel.Eq{"code": code}))
	if err = translate("get active local sale by code", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListActive 频道内进行中的出售
func (d *LocalSaleDAO) ListActive(ctx context.Context, q postgres.Querier, channelID string) (list []*model.LocalSale, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	rows, err := postgres.QueryAllBuilder[localSaleRow](ctx, q, qb.Select(localSaleColumns...).
		From("local_sales").
		Where(activeIn(channelID)).
		OrderBy("created_at", "id"))
	if err = translate("list active local sales", err); err != nil {
		d.logger.Error("failed to list local sales", "channel_id", channelID, "error", err)
		return nil, err
	}

	list = make([]*model.LocalSale, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toModel())
	}
	return list, nil
}

// ListExpiredIDs 已过期但仍为 active 的出售 ID，channelID 为空时扫描全部频道
func (d *LocalSaleDAO) ListExpiredIDs(ctx context.Context, q postgres.Querier, channelID string, now time.Time) (ids []int64, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	b := qb.Select("id").
		From("local_sales").
		Where(squirrel.Eq{"status": string(model.SaleStatusActive)}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at", "id")
	if channelID != "" {
		b = b.Where(squirrel.Eq{"channel_id": channelID})
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, translate("build list expired", err)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate("list expired local sales", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, translate("scan expired id", err)
		}
		ids = append(ids, id)
	}
	return ids, translate("iterate expired ids", rows.Err())
}
