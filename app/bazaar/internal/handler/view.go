package handler

import (
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/service"
)

// CollectibleView 收藏品定义
type CollectibleView struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Tier     string `json:"tier"`
	Artwork  string `json:"artwork,omitempty"`
	Series   string `json:"series,omitempty"`
	Author   string `json:"author,omitempty"`
	Evolving bool   `json:"evolving"`
}

// InstanceView 玩家持有的实例
type InstanceView struct {
	ID            int64     `json:"id,string"`
	OwnerID       string    `json:"owner_id"`
	CollectibleID int32     `json:"collectible_id"`
	Level         int32     `json:"level"`
	Exp           int64     `json:"exp"`
	ObtainedAt    time.Time `json:"obtained_at"`
}

// SpawnView 频道刷新
type SpawnView struct {
	ChannelID   string          `json:"channel_id"`
	Code        string          `json:"code"`
	Collectible CollectibleView `json:"collectible"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListingView 全服商店挂单
type ListingView struct {
	ID         int64        `json:"id,string"`
	Code       string       `json:"code"`
	Item       InstanceView `json:"item"`
	SellerID   string       `json:"seller_id"`
	SellerName string       `json:"seller_name"`
	Price      int64        `json:"price"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// SaleView 频道出售
type SaleView struct {
	ID         int64        `json:"id,string"`
	Code       string       `json:"code"`
	ChannelID  string       `json:"channel_id"`
	Item       InstanceView `json:"item"`
	SellerID   string       `json:"seller_id"`
	SellerName string       `json:"seller_name"`
	Price      int64        `json:"price"`
	Status     string       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// PurchaseView 成交结果
type PurchaseView struct {
	Kind           string       `json:"kind"`
	Code           string       `json:"code"`
	ChannelID      string       `json:"channel_id,omitempty"`
	Item           InstanceView `json:"item"`
	Price          int64        `json:"price"`
	BuyerBalance   int64        `json:"buyer_balance"`
	SellerID       string       `json:"seller_id"`
	SellerName     string       `json:"seller_name"`
	SellerCredited bool         `json:"seller_credited"`
}

func collectibleView(c *model.Collectible) CollectibleView {
	return CollectibleView{
		ID:       c.ID,
		Name:     c.Name,
		Tier:     c.Tier,
		Artwork:  c.Artwork,
		Series:   c.Series,
		Author:   c.Author,
		Evolving: c.Evolving,
	}
}

func instanceView(i *model.Instance) InstanceView {
	return InstanceView{
		ID:            i.ID,
		OwnerID:       i.OwnerID,
		CollectibleID: i.CollectibleID,
		Level:         i.Level,
		Exp:           i.Exp,
		ObtainedAt:    i.ObtainedAt,
	}
}

func spawnView(sp *model.ActiveSpawn) SpawnView {
	return SpawnView{
		ChannelID:   sp.ChannelID,
		Code:        sp.Code,
		Collectible: collectibleView(&sp.Collectible),
		CreatedAt:   sp.CreatedAt,
	}
}

func listingView(l *model.MarketListing) ListingView {
	return ListingView{
		ID:         l.ID,
		Code:       l.Code,
		Item:       instanceView(&l.Item),
		SellerID:   l.SellerID,
		SellerName: l.SellerName,
		Price:      l.Price,
		CreatedAt:  l.CreatedAt,
		ExpiresAt:  l.ExpiresAt,
	}
}

func saleView(s *model.LocalSale) SaleView {
	return SaleView{
		ID:         s.ID,
		Code:       s.Code,
		ChannelID:  s.ChannelID,
		Item:       instanceView(&s.Item),
		SellerID:   s.SellerID,
		SellerName: s.SellerName,
		Price:      s.Price,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

func purchaseView(r *service.PurchaseResult) PurchaseView {
	return PurchaseView{
		Kind:           r.Kind,
		Code:           r.Code,
		ChannelID:      r.ChannelID,
		Item:           instanceView(r.Item),
		Price:          r.Price,
		BuyerBalance:   r.BuyerBalance,
		SellerID:       r.SellerID,
		SellerName:     r.SellerName,
		SellerCredited: r.SellerCredited,
	}
}
