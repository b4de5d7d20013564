package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier 连接池与事务共有的查询接口
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// Client PostgreSQL 客户端
type Client struct {
	pool *pgxpool.Pool
	cfg  *Config
}

// New 创建 PostgreSQL 客户端并测试连接
func New(cfg *Config) (*Client, error) {
	newCfg, err := MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(newCfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolConfig.MaxConns = newCfg.Pool.MaxConns
	poolConfig.MinConns = newCfg.Pool.MinConns
	poolConfig.MaxConnLifetime = newCfg.Pool.MaxConnLifetime
	poolConfig.MaxConnIdleTime = newCfg.Pool.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = newCfg.Pool.HealthCheckPeriod

	ctx, cancel := context.WithTimeout(context.Background(), newCfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool, cfg: newCfg}, nil
}

// Querier 返回非事务查询入口
func (c *Client) Querier() Querier {
	return c.pool
}

// Close 关闭连接池
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}

// Ping 检查数据库连接
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Stats 获取连接池状态
func (c *Client) Stats() *PoolStats {
	stat := c.pool.Stat()
	return &PoolStats{
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		TotalConns:    stat.TotalConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// PoolStats 连接池统计
type PoolStats struct {
	AcquiredConns int32
	IdleConns     int32
	TotalConns    int32
	MaxConns      int32
}

// WithQueryTimeout 应用查询超时到 context
func (c *Client) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.QueryTimeout)
	}
	return ctx, func() {}
}
