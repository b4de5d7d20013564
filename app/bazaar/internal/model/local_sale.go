package model

import "time"

// SaleStatus 本地出售状态
type SaleStatus string

const (
	SaleStatusActive    SaleStatus = "active"
	SaleStatusSold      SaleStatus = "sold"
	SaleStatusExpired   SaleStatus = "expired"
	SaleStatusCancelled SaleStatus = "cancelled" // 卖家主动撤回，与超时区分
)

// LocalSale 频道内本地出售
// 对应表：local_sales
type LocalSale struct {
	ID         int64
	Code       string
	ChannelID  string
	Item       Instance
	SellerID   string
	SellerName string
	Price      int64
	Status     SaleStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
	BuyerID    string
	BuyerName  string
	SoldAt     *time.Time
}

// Expired 判断是否过期
func (s *LocalSale) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
