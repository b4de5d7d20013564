package model

import "time"

// MarketListing 全服商店挂单
// 对应表：market_listings
type MarketListing struct {
	ID         int64
	Code       string   // 4 位购买码
	Item       Instance // 挂单时从收藏中移出的实例快照
	SellerID   string
	SellerName string
	Price      int64 // shards，>= 1
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired 判断是否过期（到期时刻即视为过期）
func (l *MarketListing) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
