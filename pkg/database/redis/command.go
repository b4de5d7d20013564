package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Get 获取字符串值，键不存在返回 ErrNil
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set 设置值，ttl 为 0 表示不过期
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Del 删除键，返回删除数量
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return n, nil
}

// HSetWithTTL 在一个 MULTI 中写入 hash 字段并设置过期时间
func (c *Client) HSetWithTTL(ctx context.Context, key string, ttl time.Duration, values ...any) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, values...)
		if ttl > 0 {
			p.PExpire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// HGet 获取 hash 字段，键或字段不存在返回 ErrNil
func (c *Client) HGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := c.rdb.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s.%s: %w", key, field, err)
	}
	return val, nil
}

// Script Lua 脚本，优先 EVALSHA，缓存未命中时回退 EVAL
type Script struct {
	s *redis.Script
}

// NewScript 创建脚本
func NewScript(src string) *Script {
	return &Script{s: redis.NewScript(src)}
}

// Run 执行脚本，脚本返回 nil 时返回 ErrNil
func (s *Script) Run(ctx context.Context, c *Client, keys []string, args ...any) (any, error) {
	res, err := s.s.Run(ctx, c.rdb, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNil
	}
	if err != nil {
		return nil, fmt.Errorf("redis script: %w", err)
	}
	return res, nil
}

// Scan 遍历匹配 pattern 的键，fn 返回错误时终止
func (c *Client) Scan(ctx context.Context, pattern string, count int64, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
