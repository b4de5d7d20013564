package model

import "time"

// Account 玩家账户
// 对应表：accounts；收藏为 instances 中 owner_id = PlayerID 的行，按 (obtained_at, id) 排序
type Account struct {
	PlayerID  string // 聊天平台身份
	Name      string
	Shards    int64 // 主货币，交易使用
	Crystals  int64 // 付费货币，交易不涉及
	Vault     int64
	CreatedAt time.Time
}
