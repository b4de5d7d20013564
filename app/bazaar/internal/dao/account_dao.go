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

var accountColumns = []string{"player_id", "name", "shards", "crystals", "vault", "created_at"}

type accountRow struct {
	PlayerID  string    `db:"player_id"`
	Name      string    `db:"name"`
	Shards    int64     `db:"shards"`
	Crystals  int64     `db:"crystals"`
	Vault     int64     `db:"vault"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *accountRow) toModel() *model.Account {
	return &model.Account{
		PlayerID:  r.PlayerID,
		Name:      r.Name,
		Shards:    r.Shards,
		Crystals:  r.Crystals,
		Vault:     r.Vault,
		CreatedAt: r.CreatedAt,
	}
}

// AccountDAO 玩家账户数据访问对象
type AccountDAO struct {
	baseDAO
}

// NewAccountDAO 创建账户 DAO
func NewAccountDAO(l logger.Logger, m *metrics.BazaarMetrics) *AccountDAO {
	return &AccountDAO{baseDAO: newBaseDAO(l, m, "dao.account")}
}

// Get 查询账户；forUpdate 为 true 时加行锁（仅事务内有效）
func (d *AccountDAO) Get(ctx context.Context, q postgres.Querier, playerID string, forUpdate bool) (acc *model.Account, err error) {
	start := time.Now()
	defer func() { d.observe("select", start, err) }()

	b := qb.Select(accountColumns...).From("accounts").Where(squirrel.Eq{"player_id": playerID})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}

	row, err := postgres.QueryOneBuilder[accountRow](ctx, q, b)
	if err = translate("get account", err); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// Create 创建账户
func (d *AccountDAO) Create(ctx context.Context, q postgres.Querier, acc *model.Account) (err error) {
	start := time.Now()
	defer func() { d.observe("insert", start, err) }()

	_, err = postgres.ExecBuilder(ctx, q, qb.Insert("accounts").
		Columns(accountColumns...).
		Values(acc.PlayerID, acc.Name, acc.Shards, acc.Crystals, acc.Vault, acc.CreatedAt))
	if err = translate("create account", err); err != nil {
		d.logger.Error("failed to create account", "player_id", acc.PlayerID, "error", err)
	}
	return err
}

// AddShards 调整 shards 余额，账户不存在返回 ErrNotFound
func (d *AccountDAO) AddShards(ctx context.Context, q postgres.Querier, playerID string, delta int64) (err error) {
	start := time.Now()
	defer func() { d.observe("update", start, err) }()

	n, err := postgres.ExecBuilder(ctx, q, qb.Update("accounts").
		Set("shards", squirrel.Expr("shards + ?", delta)).
		Where(squirrel.Eq{"player_id": playerID}))
	if err = translate("add shards", err); err != nil {
		d.logger.Error("failed to adjust shards", "player_id", playerID, "delta", delta, "error", err)
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
