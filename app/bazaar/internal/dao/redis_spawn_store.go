package dao

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/pkg/database/redis"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/serializer"
)

const spawnKeyPrefix = "bazaar:spawn:"

// hash 字段：code / created_at(unix ms) / payload(msgpack)
var (
	takeSpawnScript = redis.NewScript(`
if redis.call("hget", KEYS[1], "code") ~= ARGV[1] then
	return false
end
local payload = redis.call("hget", KEYS[1], "payload")
redis.call("del", KEYS[1])
return payload`)

	restoreSpawnScript = redis.NewScript(`
if redis.call("exists", KEYS[1]) == 1 then
	return 0
end
redis.call("hset", KEYS[1], "code", ARGV[1], "created_at", ARGV[2], "payload", ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call("pexpire", KEYS[1], ARGV[4])
end
return 1`)

	reapSpawnScript = redis.NewScript(`
local created = redis.call("hget", KEYS[1], "created_at")
if created and tonumber(created) <= tonumber(ARGV[1]) then
	return redis.call("del", KEYS[1])
end
return 0`)
)

// spawnRecord redis 中保存的刷新快照
type spawnRecord struct {
	ChannelID     string `codec:"ch"`
	CollectibleID int32  `codec:"cid"`
	Name          string `codec:"n"`
	Tier          string `codec:"t"`
	Artwork       string `codec:"a"`
	Series        string `codec:"s"`
	Author        string `codec:"au"`
	Evolving      bool   `codec:"ev"`
	Code          string `codec:"c"`
	CreatedAt     int64  `codec:"at"`
}

func newSpawnRecord(sp *model.ActiveSpawn) *spawnRecord {
	c := sp.Collectible
	return &spawnRecord{
		ChannelID:     sp.ChannelID,
		CollectibleID: c.ID,
		Name:          c.Name,
		Tier:          c.Tier,
		Artwork:       c.Artwork,
		Series:        c.Series,
		Author:        c.Author,
		Evolving:      c.Evolving,
		Code:          sp.Code,
		CreatedAt:     sp.CreatedAt.UnixMilli(),
	}
}

func (r *spawnRecord) toModel() *model.ActiveSpawn {
	return &model.ActiveSpawn{
		ChannelID: r.ChannelID,
		Collectible: model.Collectible{
			ID:       r.CollectibleID,
			Name:     r.Name,
			Tier:     r.Tier,
			Artwork:  r.Artwork,
			Series:   r.Series,
			Author:   r.Author,
			Evolving: r.Evolving,
		},
		Code:      r.Code,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}
}

var _ SpawnStore = (*RedisSpawnStore)(nil)

// RedisSpawnStore 基于 redis hash + Lua 比较删除的刷新存储，可多进程共享
type RedisSpawnStore struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisSpawnStore 创建 redis 刷新存储
func NewRedisSpawnStore(client *redis.Client, l logger.Logger) *RedisSpawnStore {
	return &RedisSpawnStore{client: client, logger: l.Named("dao.spawn_store")}
}

func spawnKey(channelID string) string {
	return spawnKeyPrefix + channelID
}

func (s *RedisSpawnStore) Save(ctx context.Context, spawn *model.ActiveSpawn, ttl time.Duration) error {
	payload, err := serializer.Encode(newSpawnRecord(spawn))
	if err != nil {
		return fmt.Errorf("encode spawn: %w", err)
	}
	return s.client.HSetWithTTL(ctx, spawnKey(spawn.ChannelID), ttl,
		"code", spawn.Code,
		"created_at", spawn.CreatedAt.UnixMilli(),
		"payload", payload,
	)
}

func (s *RedisSpawnStore) Load(ctx context.Context, channelID string) (*model.ActiveSpawn, error) {
	payload, err := s.client.HGet(ctx, spawnKey(channelID), "payload")
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSpawn(payload)
}

func (s *RedisSpawnStore) Take(ctx context.Context, channelID, code string) (*model.ActiveSpawn, error) {
	res, err := takeSpawnScript.Run(ctx, s.client, []string{spawnKey(channelID)}, code)
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	payload, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("take spawn: unexpected reply %T", res)
	}
	return decodeSpawn([]byte(payload))
}

func (s *RedisSpawnStore) Restore(ctx context.Context, spawn *model.ActiveSpawn, ttl time.Duration) (bool, error) {
	payload, err := serializer.Encode(newSpawnRecord(spawn))
	if err != nil {
		return false, fmt.Errorf("encode spawn: %w", err)
	}

	res, err := restoreSpawnScript.Run(ctx, s.client, []string{spawnKey(spawn.ChannelID)},
		spawn.Code, spawn.CreatedAt.UnixMilli(), payload, ttl.Milliseconds())
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *RedisSpawnStore) Remove(ctx context.Context, channelID string) error {
	_, err := s.client.Del(ctx, spawnKey(channelID))
	return err
}

func (s *RedisSpawnStore) RemoveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	cutoffMs := strconv.FormatInt(cutoff.UnixMilli(), 10)

	err := s.client.Scan(ctx, spawnKeyPrefix+"*", 100, func(key string) error {
		res, err := reapSpawnScript.Run(ctx, s.client, []string{key}, cutoffMs)
		if err != nil {
			s.logger.Warn("failed to reap spawn", "key", key, "error", err)
			return nil
		}
		if n, _ := res.(int64); n > 0 {
			removed++
		}
		return nil
	})
	return removed, err
}

func decodeSpawn(payload []byte) (*model.ActiveSpawn, error) {
	var rec spawnRecord
	if err := serializer.Decode(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode spawn: %w", err)
	}
	return rec.toModel(), nil
}
