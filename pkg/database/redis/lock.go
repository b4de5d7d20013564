package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Second

var (
	unlockScript = NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

	refreshScript = NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// Lock 单节点分布式锁
type Lock struct {
	client *Client
	key    string
	value  string // 持有者标识
	ttl    time.Duration
}

// NewLock 创建分布式锁
func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Lock{
		client: client,
		key:    key,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	return ok, nil
}

// Unlock 释放锁，只有持有者能释放
func (l *Lock) Unlock(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value)
	if err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Refresh 延长锁的持有时间
func (l *Lock) Refresh(ctx context.Context) error {
	res, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
