package model

import "time"

// ChannelKind 频道类型
type ChannelKind string

const (
	ChannelKindGroup  ChannelKind = "group"
	ChannelKindDirect ChannelKind = "direct"
)

// Feature 频道功能开关
type Feature string

const (
	FeatureSpawn Feature = "spawn"
	FeatureSale  Feature = "sale"
)

// Channel 频道记录
// 对应表：channels
type Channel struct {
	ChannelID        string
	Kind             ChannelKind
	SpawnEnabled     bool
	SaleEnabled      bool
	LastSpawnSummary string
	UpdatedAt        time.Time
}

// Allows 仅群组频道且开启对应开关时可用
func (c *Channel) Allows(f Feature) bool {
	if c.Kind != ChannelKindGroup {
		return false
	}
	switch f {
	case FeatureSpawn:
		return c.SpawnEnabled
	case FeatureSale:
		return c.SaleEnabled
	default:
		return false
	}
}
