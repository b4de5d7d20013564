package service

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
)

const (
	kindMarket = "market"
	kindLocal  = "local"
)

// listingSnapshot 被取走的挂单（两种挂单共用）
type listingSnapshot struct {
	ID         int64
	Code       string
	ChannelID  string // 频道出售才有
	Item       model.Instance
	SellerID   string
	SellerName string
	Price      int64
}

// purchaseTarget 一种挂单的购买方式
type purchaseTarget interface {
	kind() string
	// take 原子地取走仍然有效的挂单，没有匹配返回 repository.ErrNotFound
	take(ctx context.Context, tx repository.EconomyRepository, buyerID string, now time.Time) (*listingSnapshot, error)
	// settle 成交后补充写入（可为空操作）
	settle(ctx context.Context, tx repository.EconomyRepository, l *listingSnapshot, buyer *model.Account) error
	// missErr 没有可购买的挂单时返回的错误
	missErr() error
	// buyerChannel 买家通知发送到的频道
	buyerChannel(buyerID string) string
}

// PurchaseResult 成交结果
type PurchaseResult struct {
	Kind           string
	ListingID      int64
	Code           string
	ChannelID      string
	Item           *model.Instance
	Collectible    *model.Collectible
	Price          int64
	BuyerID        string
	BuyerName      string
	BuyerBalance   int64
	SellerID       string
	SellerName     string
	SellerCredited bool
}

// Purchaser 购买事务，全局商店与频道出售共用
type Purchaser struct {
	logger    logger.Logger
	repo      repository.EconomyRepository
	messenger messenger.Messenger
	pool      *pool.Pool
	catalog   *model.Catalog
	metrics   *metrics.BazaarMetrics
	now       func() time.Time
}

// NewPurchaser 创建购买事务执行器
func NewPurchaser(
	l logger.Logger,
	repo repository.EconomyRepository,
	m messenger.Messenger,
	p *pool.Pool,
	catalog *model.Catalog,
	bm *metrics.BazaarMetrics,
) *Purchaser {
	return &Purchaser{
		logger:    l.Named("service.purchase"),
		repo:      repo,
		messenger: m,
		pool:      p,
		catalog:   catalog,
		metrics:   bm,
		now:       time.Now,
	}
}

// purchase 在一个事务中完成取单、扣款、交付与入账
//
// 任一前置条件失败都会回滚整个事务，挂单随之恢复，不需要补偿写。
func (p *Purchaser) purchase(ctx context.Context, buyerID string, t purchaseTarget) (*PurchaseResult, error) {
	now := p.now()
	var res *PurchaseResult

	err := p.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		// 1. 原子取单，唯一的串行点
		l, err := t.take(ctx, tx, buyerID, now)
		if errors.Is(err, repository.ErrNotFound) {
			return t.missErr()
		}
		if err != nil {
			return storeErr(err, "take listing")
		}

		// 2. 按 ID 顺序锁定买卖双方账户，避免交叉购买死锁
		accounts, err := lockAccounts(ctx, tx, buyerID, l.SellerID)
		if err != nil {
			return err
		}
		buyer, ok := accounts[buyerID]
		if !ok {
			return ErrNotRegistered
		}

		// 3. 不能购买自己的挂单
		if buyerID == l.SellerID {
			return ErrSelfPurchase
		}

		// 4. 余额检查
		if buyer.Shards < l.Price {
			return errors.Wrapf(ErrInsufficientFunds, "balance %d, price %d", buyer.Shards, l.Price)
		}

		// 5. 扣款并交付
		if err := tx.AdjustShards(ctx, buyerID, -l.Price); err != nil {
			return storeErr(err, "debit buyer")
		}
		item := l.Item.TransferTo(buyerID, now)
		if err := tx.InsertInstance(ctx, item); err != nil {
			return storeErr(err, "deliver item")
		}

		// 6. 卖家账户存在才入账
		_, sellerExists := accounts[l.SellerID]
		if sellerExists {
			if err := tx.AdjustShards(ctx, l.SellerID, l.Price); err != nil {
				return storeErr(err, "credit seller")
			}
		} else {
			p.logger.Warn("seller account missing, credit skipped",
				"kind", t.kind(), "code", l.Code, "seller_id", l.SellerID, "price", l.Price)
		}

		if err := t.settle(ctx, tx, l, buyer); err != nil {
			return storeErr(err, "settle listing")
		}

		c := collectibleOf(p.catalog, p.logger, item.CollectibleID)
		res = &PurchaseResult{
			Kind:           t.kind(),
			ListingID:      l.ID,
			Code:           l.Code,
			ChannelID:      l.ChannelID,
			Item:           item,
			Collectible:    c,
			Price:          l.Price,
			BuyerID:        buyerID,
			BuyerName:      buyer.Name,
			BuyerBalance:   buyer.Shards - l.Price,
			SellerID:       l.SellerID,
			SellerName:     l.SellerName,
			SellerCredited: sellerExists,
		}
		return nil
	})
	err = txErr(err, "purchase")
	p.metrics.RecordPurchase(t.kind(), outcome(err))
	if err != nil {
		return nil, err
	}

	p.logger.Info("purchase completed",
		"kind", res.Kind,
		"code", res.Code,
		"buyer_id", res.BuyerID,
		"seller_id", res.SellerID,
		"price", res.Price,
	)

	// 7. 提交后通知：买家同步发送，卖家异步尽力而为
	err = p.messenger.SendMessage(ctx, t.buyerChannel(buyerID), buyerNotice(res))
	p.metrics.RecordNotice(err)
	if err != nil {
		p.logger.Warn("failed to notify buyer", "buyer_id", buyerID, "code", res.Code, "error", err)
	}
	p.notifyAsync(res.SellerID, sellerNotice(res))

	return res, nil
}

// notifyAsync 在协程池中发送通知，失败只记录日志
func (p *Purchaser) notifyAsync(channelID, content string) {
	err := p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := p.messenger.SendMessage(ctx, channelID, content)
		p.metrics.RecordNotice(err)
		if err != nil {
			p.logger.Warn("failed to send notice", "channel_id", channelID, "error", err)
		}
	})
	if err != nil {
		p.logger.Warn("failed to submit notice", "channel_id", channelID, "error", err)
	}
}

// lockAccounts 按 player_id 排序加锁，返回存在的账户
func lockAccounts(ctx context.Context, tx repository.EconomyRepository, ids ...string) (map[string]*model.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	accounts := make(map[string]*model.Account, len(sorted))
	for _, id := range sorted {
		if _, done := accounts[id]; done {
			continue
		}
		acc, err := tx.GetAccountForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "lock account")
		}
		accounts[id] = acc
	}
	return accounts, nil
}

// ============ 两种购买目标 ============

type marketTarget struct {
	code string
}

func (marketTarget) kind() string { return kindMarket }

func (t marketTarget) take(ctx context.Context, tx repository.EconomyRepository, _ string, now time.Time) (*listingSnapshot, error) {
	l, err := tx.TakeMarketListing(ctx, t.code, now)
	if err != nil {
		return nil, err
	}
	return &listingSnapshot{
		ID:         l.ID,
		Code:       l.Code,
		Item:       l.Item,
		SellerID:   l.SellerID,
		SellerName: l.SellerName,
		Price:      l.Price,
	}, nil
}

func (marketTarget) settle(context.Context, repository.EconomyRepository, *listingSnapshot, *model.Account) error {
	return nil
}

func (marketTarget) missErr() error { return ErrNotAvailable }

// 全局商店的成交通知私聊买家
func (marketTarget) buyerChannel(buyerID string) string { return buyerID }

type localTarget struct {
	channelID string
	code      string
}

func (localTarget) kind() string { return kindLocal }

func (t localTarget) take(ctx context.Context, tx repository.EconomyRepository, buyerID string, now time.Time) (*listingSnapshot, error) {
	s, err := tx.MarkLocalSaleSold(ctx, t.channelID, t.code, buyerID, now)
	if err != nil {
		return nil, err
	}
	return &listingSnapshot{
		ID:         s.ID,
		Code:       s.Code,
		ChannelID:  s.ChannelID,
		Item:       s.Item,
		SellerID:   s.SellerID,
		SellerName: s.SellerName,
		Price:      s.Price,
	}, nil
}

func (localTarget) settle(ctx context.Context, tx repository.EconomyRepository, l *listingSnapshot, buyer *model.Account) error {
	return tx.SetLocalSaleBuyerName(ctx, l.ID, buyer.Name)
}

func (localTarget) missErr() error { return errors.Wrap(ErrNotFound, "no active sale found") }

// 频道出售的成交通知发在出售所在频道
func (t localTarget) buyerChannel(string) string { return t.channelID }

// collectibleOf 查找收藏品定义，目录中缺失时记录告警并返回 nil
func collectibleOf(catalog *model.Catalog, l logger.Logger, id int32) *model.Collectible {
	c, ok := catalog.Get(id)
	if !ok {
		l.Warn("collectible missing from catalog", "collectible_id", id)
	}
	return c
}
