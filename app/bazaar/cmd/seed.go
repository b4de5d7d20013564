package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
)

// SeedCollectible 收藏品定义
type SeedCollectible struct {
	ID       int32  `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Tier     string `mapstructure:"tier"`
	Artwork  string `mapstructure:"artwork"`
	Series   string `mapstructure:"series"`
	Author   string `mapstructure:"author"`
	Evolving bool   `mapstructure:"evolving"`
}

// SeedChannel 频道记录
type SeedChannel struct {
	ID    string `mapstructure:"id"`
	Kind  string `mapstructure:"kind"`
	Spawn bool   `mapstructure:"spawn"`
	Sale  bool   `mapstructure:"sale"`
}

// SeedAccount 玩家账户及初始收藏（收藏品 ID 列表）
type SeedAccount struct {
	ID     string  `mapstructure:"id"`
	Name   string  `mapstructure:"name"`
	Shards int64   `mapstructure:"shards"`
	Owns   []int32 `mapstructure:"owns"`
}

// SeedConfig memory 驱动的初始数据
type SeedConfig struct {
	Collectibles []SeedCollectible `mapstructure:"collectibles"`
	Channels     []SeedChannel     `mapstructure:"channels"`
	Accounts     []SeedAccount     `mapstructure:"accounts"`
}

func (s *SeedConfig) collectibles() []*model.Collectible {
	out := make([]*model.Collectible, 0, len(s.Collectibles))
	for _, c := range s.Collectibles {
		out = append(out, &model.Collectible{
			ID:       c.ID,
			Name:     c.Name,
			Tier:     c.Tier,
			Artwork:  c.Artwork,
			Series:   c.Series,
			Author:   c.Author,
			Evolving: c.Evolving,
		})
	}
	return out
}

// seedMemory 向内存仓储导入频道、账户与初始收藏
func seedMemory(ctx context.Context, repo *repository.MemoryRepository, seed *SeedConfig, catalog *model.Catalog, ids idgen.Generator) error {
	now := time.Now()

	for _, ch := range seed.Channels {
		kind := model.ChannelKind(ch.Kind)
		if kind == "" {
			kind = model.ChannelKindGroup
		}
		if err := repo.SaveChannel(ctx, &model.Channel{
			ChannelID:    ch.ID,
			Kind:         kind,
			SpawnEnabled: ch.Spawn,
			SaleEnabled:  ch.Sale,
			UpdatedAt:    now,
		}); err != nil {
			return fmt.Errorf("seed channel %s: %w", ch.ID, err)
		}
	}

	for _, acc := range seed.Accounts {
		if err := repo.CreateAccount(ctx, &model.Account{
			PlayerID:  acc.ID,
			Name:      acc.Name,
			Shards:    acc.Shards,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("seed account %s: %w", acc.ID, err)
		}
		for i, cid := range acc.Owns {
			c, ok := catalog.Get(cid)
			if !ok {
				return fmt.Errorf("seed account %s: unknown collectible %d", acc.ID, cid)
			}
			id, err := ids.NextID()
			if err != nil {
				return err
			}
			// 每件间隔一秒，保持收藏顺序与配置一致
			obtained := now.Add(time.Duration(i) * time.Second)
			if err := repo.InsertInstance(ctx, model.NewInstance(id, acc.ID, c, obtained)); err != nil {
				return fmt.Errorf("seed instance for %s: %w", acc.ID, err)
			}
		}
	}
	return nil
}
