package dao

import (
	"context"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

type collectibleRow struct {
	ID       int32  `db:"id"`
	Name     string `db:"name"`
	Tier     string `db:"tier"`
	Artwork  string `db:"artwork"`
	Series   string `db:"series"`
	Author   string `db:"author"`
	Evolving bool   `db:"evolving"`
}

// CollectibleDAO 收藏品定义（只读）
type CollectibleDAO struct {
	baseDAO
}

// NewCollectibleDAO 创建定义 DAO
func NewCollectibleDAO(l logger.Logger, m *metrics.BazaarMetrics) *CollectibleDAO {
	return &CollectibleDAO{baseDAO: newBaseDAO(l, m, "dao.collectible")}
}

// ListAll 加载全部定义，按 id 排序
func (d *CollectibleDAO) ListAll(ctx context.Context, q postgres.Querier) (list []*model.Collectible, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	rows, err := postgres.QueryAllBuilder[collectibleRow](ctx, q, qb.
		Select("id", "name", "tier", "artwork", "series", "author", "evolving").
		From("collectibles").
		OrderBy("id"))
	if err = translate("list collectibles", err); err != nil {
		d.logger.Error("failed to load collectibles", "error", err)
		return nil, err
	}

	list = make([]*model.Collectible, 0, len(rows))
	for _, r := range rows {
		list = append(list, &model.Collectible{
			ID:       r.ID,
			Name:     r.Name,
			Tier:     r.Tier,
			Artwork:  r.Artwork,
			Series:   r.Series,
			Author:   r.Author,
			Evolving: r.Evolving,
		})
	}
	return list, nil
}
