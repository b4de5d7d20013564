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

var channelColumns = []string{"channel_id", "kind", "spawn_enabled", "sale_enabled", "last_spawn_summary", "updated_at"}

type channelRow struct {
	ChannelID        string    `db:"channel_id"`
	Kind             string    `db:"kind"`
	SpawnEnabled     bool      `db:"spawn_enabled"`
	SaleEnabled      bool      `db:"sale_enabled"`
	LastSpawnSummary string    `db:"last_spawn_summary"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r *channelRow) toModel() *model.Channel {
	return &model.Channel{
		ChannelID:        r.ChannelID,
		Kind:             model.ChannelKind(r.Kind),
		SpawnEnabled:     r.SpawnEnabled,
		SaleEnabled:      r.SaleEnabled,
		LastSpawnSummary: r.LastSpawnSummary,
		UpdatedAt:        r.UpdatedAt,
	}
}

// ChannelDAO 频道记录数据访问对象
type ChannelDAO struct {
	baseDAO
}

// NewChannelDAO 创建频道 DAO
func NewChannelDAO(l logger.Logger, m *metrics.BazaarMetrics) *ChannelDAO {
	return &ChannelDAO{baseDAO: newBaseDAO(l, m, "dao.channel")}
}

// Get 查询频道记录
func (d *ChannelDAO) Get(ctx context.Context, q postgres.Querier, channelID string) (ch *model.Channel, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	row, err := postgres.QueryOneBuilder[channelRow](ctx, q, qb.Select(channelColumns...).
		From("channels").
		Where(squirrel.Eq{"channel_id": channelID}))
	if err = translate("get channel", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListSpawnEnabled 查询开启刷新的群组频道
func (d *ChannelDAO) ListSpawnEnabled(ctx context.Context, q postgres.Querier) (list []*model.Channel, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	rows, err := postgres.QueryAllBuilder[channelRow](ctx, q, qb.Select(channelColumns...).
		From("channels").
		Where(squirrel.Eq{"spawn_enabled": true, "kind": string(model.ChannelKindGroup)}).
		OrderBy("channel_id"))
	if err = translate("list spawn channels", err); err != nil {
		d.logger.Error("failed to list spawn channels", "error", err)
		return nil, err
	}

	list = make([]*model.Channel, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toModel())
	}
	return list, nil
}

// Upsert 写入频道记录
func (d *ChannelDAO) Upsert(ctx context.Context, q postgres.Querier, ch *model.Channel) (err error) {
	start := time.Now()
	defer func() { d.observe("upsert", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Insert("channels").
		Columns(channelColumns...).
		Values(ch.ChannelID, string(ch.Kind), ch.SpawnEnabled, ch.SaleEnabled, ch.LastSpawnSummary, ch.UpdatedAt).
		Suffix(`ON CONFLICT (channel_id) DO UPDATE SET kind = EXCLUDED.kind, spawn_enabled = EXCLUDED.spawn_enabled,
			sale_enabled = EXCLUDED.sale_enabled, updated_at = EXCLUDED.updated_at`))
	return translate("upsert channel", err)
}

// SetLastSpawnSummary 更新最近一次刷新摘要，空字符串表示清除
func (d *ChannelDAO) SetLastSpawnSummary(ctx context.Context, q postgres.Querier, channelID, summary string, now time.Time) (err error) {
	start := time.Now()
	defer func() { d.observe("update", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Update("channels").
		Set("last_spawn_summary", summary).
		Set("updated_at", now).
		Where(squirrel.Eq{"channel_id": channelID}))
	if err = translate("set last spawn summary", err); err != nil {
		d.logger.Error("failed to set last spawn summary", "channel_id", channelID, "error", err)
	}
	return err
}
