package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client Redis 客户端
type Client struct {
	rdb redis.UniversalClient
	cfg *Config
}

// NewClient 创建 Redis 客户端并 Ping
func NewClient(cfg *Config) (*Client, error) {
	newCfg, err := MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            newCfg.Addr,
		Password:        newCfg.Password,
		DB:              newCfg.DB,
		MaxIdleConns:    newCfg.Pool.MaxIdleConns,
		MaxActiveConns:  newCfg.Pool.MaxOpenConns,
		ConnMaxIdleTime: newCfg.Pool.ConnMaxIdleTime,
		DialTimeout:     newCfg.Pool.DialTimeout,
		ReadTimeout:     newCfg.Pool.ReadTimeout,
		WriteTimeout:    newCfg.Pool.WriteTimeout,
		PoolTimeout:     newCfg.Pool.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), newCfg.Pool.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{rdb: rdb, cfg: newCfg}, nil
}

// NewClientFromUniversal 包装已有的 go-redis 客户端
func NewClientFromUniversal(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb, cfg: DefaultConfig()}
}

// Ping 检查连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.rdb.Close()
}
