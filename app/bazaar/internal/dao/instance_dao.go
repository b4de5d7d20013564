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

var instanceColumns = []string{"id", "owner_id", "collectible_id", "level", "exp", "obtained_at"}

type instanceRow struct {
	ID            int64     `db:"id"`
	OwnerID       string    `db:"owner_id"`
	CollectibleID int32     `db:"collectible_id"`
	Level         int32     `db:"level"`
	Exp           int64     `db:"exp"`
	ObtainedAt    time.Time `db:"obtained_at"`
}

func (r *instanceRow) toModel() *model.Instance {
	return &model.Instance{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		CollectibleID: r.CollectibleID,
		Level:         r.Level,
		Exp:           r.Exp,
		ObtainedAt:    r.ObtainedAt,
	}
}

// InstanceDAO 收藏实例数据访问对象
type InstanceDAO struct {
	baseDAO
}

// NewInstanceDAO 创建实例 DAO
func NewInstanceDAO(l logger.Logger, m *metrics.BazaarMetrics) *InstanceDAO {
	return &InstanceDAO{baseDAO: newBaseDAO(l, m, "dao.instance")}
}

// ListByOwner 查询玩家收藏，按 (obtained_at, id) 排序
func (d *InstanceDAO) ListByOwner(ctx context.Context, q postgres.Querier, ownerID string) (list []*model.Instance, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	rows, err := postgres.QueryAllBuilder[instanceRow](ctx, q, qb.Select(instanceColumns...).
		From("instances").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("obtained_at", "id"))
	if err = translate("list instances", err); err != nil {
		d.logger.Error("failed to list instances", "owner_id", ownerID, "error", err)
		return nil, err
	}

	list = make([]*model.Instance, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toModel())
	}
	return list, nil
}

// TakeByIndex 按 1 起始的收藏序号移出实例（锁定并删除），序号越界返回 ErrNotFound
func (d *InstanceDAO) TakeByIndex(ctx context.Context, q postgres.Querier, ownerID string, index int) (inst *model.Instance, err error) {
	start := time.Now()
	defer func() { d.observe("delete", start, err) }()

	if index < 1 {
		return nil, ErrNotFound
	}

	// 1. 锁定目标行
	row, err := postgres.QueryOneBuilder[instanceRow](ctx, q, qb.Select(instanceColumns...).
		From("instances").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("obtained_at", "id").
		Offset(uint64(index-1)).
		Limit(1).
		Suffix("FOR UPDATE"))
	if err = translate("select instance by index", err); err != nil {
		return nil, err
	}

	// 2. 从收藏中删除
	if _, err = postgres.ExecBuilder(ctx, q, qb.Delete("instances").Where(squirrel.Eq{"id": row.ID})); err != nil {
		err = translate("delete instance", err)
		d.logger.Error("failed to take instance", "owner_id", ownerID, "index", index, "error", err)
		return nil, err
	}
	return row.toModel(), nil
}

// Insert 放入收藏
func (d *InstanceDAO) Insert(ctx context.Context, q postgres.Querier, inst *model.Instance) (err error) {
	start := time.Now()
	defer func() { d.observe("insert", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Insert("instances").
		Columns(instanceColumns...).
		Values(inst.ID, inst.OwnerID, inst.CollectibleID, inst.Level, inst.Exp, inst.ObtainedAt))
	if err = translate("insert instance", err); err != nil {
		d.logger.Error("failed to insert instance", "id", inst.ID, "owner_id", inst.OwnerID, "error", err)
	}
	return err
}
