package model

import (
	"strings"
	"time"
)

// ActiveSpawn 频道当前刷新的收藏品（每频道至多一个）
type ActiveSpawn struct {
	ChannelID   string
	Collectible Collectible
	Code        string // 认领码，同一频道内唯一即可
	CreatedAt   time.Time
}

// Matches 名称大小写不敏感精确匹配，首尾空白由命令层去除
func (s *ActiveSpawn) Matches(name string) bool {
	return strings.EqualFold(name, s.Collectible.Name)
}

// StaleAt 判断在 now 时刻是否已超过 staleAfter
func (s *ActiveSpawn) StaleAt(now time.Time, staleAfter time.Duration) bool {
	return !now.Before(s.CreatedAt.Add(staleAfter))
}
