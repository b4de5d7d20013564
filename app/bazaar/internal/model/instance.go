package model

import "time"

// Instance 玩家持有的收藏品实例
// 对应表：instances
// 同一实例任一时刻只存在于一处：玩家收藏、挂单快照或刷新点（刷新点只持有定义，认领时才生成实例）
type Instance struct {
	ID            int64     // 实例ID（雪花ID，挂单/归还时保持不变）
	OwnerID       string    // 持有者
	CollectibleID int32     // 定义ID
	Level         int32     // 等级（成长型独立快照）
	Exp           int64     // 经验
	ObtainedAt    time.Time // 获得时间，决定收藏排序
}

// NewInstance 为新捕获的收藏品创建实例
func NewInstance(id int64, ownerID string, c *Collectible, now time.Time) *Instance {
	return &Instance{
		ID:            id,
		OwnerID:       ownerID,
		CollectibleID: c.ID,
		Level:         1,
		Exp:           0,
		ObtainedAt:    now,
	}
}

// TransferTo 返回归属新持有者的副本
func (i Instance) TransferTo(ownerID string, at time.Time) *Instance {
	i.OwnerID = ownerID
	i.ObtainedAt = at
	return &i
}
