package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/config"
)

// SpawnConfig 刷新配置
type SpawnConfig struct {
	// Offsets 每小时内的触发分钟，例如 [0, 30, 45, 50]
	Offsets []int `mapstructure:"offsets" validate:"min=1,dive,gte=0,lte=59"`
	// Pacing 相邻频道刷新间隔，避免消息通道突发
	Pacing time.Duration `mapstructure:"pacing"`
	// ReapSpec 过期刷新回收的 cron 表达式
	ReapSpec string `mapstructure:"reap_spec" validate:"required"`
	// CycleLockTTL 多进程部署时刷新周期锁的有效期
	CycleLockTTL time.Duration `mapstructure:"cycle_lock_ttl"`
}

// MarketConfig 全服商店配置
type MarketConfig struct {
	Capacity    int           `mapstructure:"capacity" validate:"gte=1"`
	TTL         time.Duration `mapstructure:"ttl"`
	MinTierRank int           `mapstructure:"min_tier_rank"`
	SweepSpec   string        `mapstructure:"sweep_spec" validate:"required"`
}

// LocalSaleConfig 频道出售配置
type LocalSaleConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	SweepSpec string        `mapstructure:"sweep_spec" validate:"required"`
}

// ReaperConfig 到期回收配置
type ReaperConfig struct {
	// Grace 定时器相对过期时间的延后量
	Grace time.Duration `mapstructure:"grace"`
	// Timeout 单次回收超时
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config 集市业务配置
type Config struct {
	Tiers     TierTable       `mapstructure:"tiers" validate:"min=1,dive"`
	Spawn     SpawnConfig     `mapstructure:"spawn"`
	Market    MarketConfig    `mapstructure:"market"`
	LocalSale LocalSaleConfig `mapstructure:"local_sale"`
	Reaper    ReaperConfig    `mapstructure:"reaper"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Tiers: TierTable{
			{Name: "common", Weight: 60, Rank: 1},
			{Name: "uncommon", Weight: 25, Rank: 2},
			{Name: "rare", Weight: 10, Rank: 3},
			{Name: "epic", Weight: 4, Rank: 4},
			{Name: "legendary", Weight: 1, Rank: 5},
		},
		Spawn: SpawnConfig{
			Offsets:      []int{0, 30, 45, 50},
			Pacing:       time.Second,
			ReapSpec:     "@every 5m",
			CycleLockTTL: 5 * time.Minute,
		},
		Market: MarketConfig{
			Capacity:    12,
			TTL:         6 * time.Hour,
			MinTierRank: 2,
			SweepSpec:   "@every 1m",
		},
		LocalSale: LocalSaleConfig{
			TTL:       10 * time.Minute,
			SweepSpec: "@every 30s",
		},
		Reaper: ReaperConfig{
			Grace:   500 * time.Millisecond,
			Timeout: 10 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return config.ErrNilConfig
	}
	if err := config.NewValidator().Validate(c); err != nil {
		return err
	}
	if _, err := NormalizeOffsets(c.Spawn.Offsets); err != nil {
		return err
	}
	return nil
}

// NormalizeOffsets 校验并排序去重分钟偏移
func NormalizeOffsets(offsets []int) ([]int, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: spawn offsets are empty", config.ErrValidationFailed)
	}
	seen := make(map[int]struct{}, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o < 0 || o > 59 {
			return nil, fmt.Errorf("%w: spawn offset %d out of range [0,59]", config.ErrValidationFailed, o)
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	sort.Ints(out)
	return out, nil
}
