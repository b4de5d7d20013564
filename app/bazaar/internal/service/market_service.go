package service

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// MarketService 全服商店
type MarketService struct {
	logger    logger.Logger
	repo      repository.EconomyRepository
	messenger messenger.Messenger
	purchaser *Purchaser
	reaper    *Reaper
	catalog   *model.Catalog
	tiers     TierTable
	ids       idgen.Generator
	rand      Rand
	metrics   *metrics.BazaarMetrics
	config    *MarketConfig
	now       func() time.Time
}

// NewMarketService 创建全服商店服务
func NewMarketService(
	l logger.Logger,
	repo repository.EconomyRepository,
	m messenger.Messenger,
	purchaser *Purchaser,
	reaper *Reaper,
	catalog *model.Catalog,
	tiers TierTable,
	ids idgen.Generator,
	r Rand,
	bm *metrics.BazaarMetrics,
	cfg *MarketConfig,
) *MarketService {
	return &MarketService{
		logger:    l.Named("service.market"),
		repo:      repo,
		messenger: m,
		purchaser: purchaser,
		reaper:    reaper,
		catalog:   catalog,
		tiers:     tiers,
		ids:       ids,
		rand:      r,
		metrics:   bm,
		config:    cfg,
		now:       time.Now,
	}
}

func marketReapKey(id int64) string {
	return "market:" + strconv.FormatInt(id, 10)
}

// List 将收藏中第 index 个（从 1 开始）实例以 price 上架
func (s *MarketService) List(ctx context.Context, sellerID string, index int, price int64) (listing *model.MarketListing, err error) {
	defer func() { s.metrics.RecordListing(kindMarket, outcome(err)) }()

	if price < 1 {
		return nil, ErrInvalidPrice
	}

	// 1. 先清理到期挂单，释放容量
	s.sweepLazily(ctx)

	seller, err := s.repo.GetAccount(ctx, sellerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, storeErr(err, "load seller")
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, errors.Wrap(err, "generate listing id")
	}

	var count int
	err = s.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		// 2. 商店锁内检查容量，保证挂单数不超过上限
		if err := tx.LockMarket(ctx); err != nil {
			return storeErr(err, "lock market")
		}
		n, err := tx.CountMarket(ctx)
		if err != nil {
			return storeErr(err, "count market")
		}
		if n >= s.config.Capacity {
			return errors.Wrapf(ErrCapacityExceeded, "%d/%d", n, s.config.Capacity)
		}

		// 3. 从收藏中移出
		inst, err := tx.TakeInstance(ctx, sellerID, index)
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrNotFound, "collection index %d", index)
		}
		if err != nil {
			return storeErr(err, "take instance")
		}

		// 4. 稀有度门槛，不满足时回滚放回收藏
		c := collectibleOf(s.catalog, s.logger, inst.CollectibleID)
		if c == nil || s.tiers.Rank(c.Tier) < s.config.MinTierRank {
			return ErrTierTooLow
		}

		// 5. 生成唯一购买码并写入挂单
		code, err := uniqueCode(s.rand, func(code string) (bool, error) {
			return tx.MarketCodeExists(ctx, code)
		})
		if err != nil {
			return err
		}

		now := s.now()
		listing = &model.MarketListing{
			ID:         id,
			Code:       code,
			Item:       *inst,
			SellerID:   sellerID,
			SellerName: seller.Name,
			Price:      price,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.config.TTL),
		}
		if err := tx.InsertMarketListing(ctx, listing); err != nil {
			return storeErr(err, "insert market listing")
		}
		count = n + 1
		return nil
	})
	if err = txErr(err, "list on market"); err != nil {
		return nil, err
	}

	// 6. 到期定时回收
	s.reaper.Schedule(marketReapKey(listing.ID), listing.ExpiresAt, func(ctx context.Context) {
		if _, err := s.expireOne(ctx, listing.ID); err != nil {
			s.logger.Warn("scheduled market reap failed", "listing_id", listing.ID, "error", err)
		}
	})
	s.metrics.SetMarketOccupancy(count)

	s.logger.Info("market listing created",
		"listing_id", listing.ID,
		"code", listing.Code,
		"seller_id", sellerID,
		"price", price,
	)
	return listing, nil
}

// Browse index 为 0 返回全部挂单，否则返回第 index 个（从 1 开始）
func (s *MarketService) Browse(ctx context.Context, index int) ([]*model.MarketListing, error) {
	s.sweepLazily(ctx)

	list, err := s.repo.ListMarket(ctx)
	if err != nil {
		return nil, storeErr(err, "list market")
	}
	s.metrics.SetMarketOccupancy(len(list))

	if index == 0 {
		return list, nil
	}
	if index < 1 || index > len(list) {
		return nil, errors.Wrapf(ErrNotFound, "listing index %d of %d", index, len(list))
	}
	return list[index-1 : index], nil
}

// Purchase 按购买码购买
func (s *MarketService) Purchase(ctx context.Context, buyerID, code string) (*PurchaseResult, error) {
	s.sweepLazily(ctx)

	res, err := s.purchaser.purchase(ctx, buyerID, marketTarget{code: NormalizeCode(code)})
	if err != nil {
		return nil, err
	}
	s.reaper.Cancel(marketReapKey(res.ListingID))
	return res, nil
}

// ExpireSweep 回收所有到期挂单，返回回收数量
func (s *MarketService) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpiredMarket(ctx, s.now())
	if err != nil {
		return 0, storeErr(err, "list expired market")
	}

	reaped := 0
	for _, l := range expired {
		ok, err := s.expireOne(ctx, l.ID)
		if err != nil {
			s.logger.Warn("failed to expire market listing", "listing_id", l.ID, "error", err)
			continue
		}
		if ok {
			reaped++
		}
	}
	return reaped, nil
}

// expireOne 删除到期挂单并将实例归还卖家；已被购买或回收时返回 false
func (s *MarketService) expireOne(ctx context.Context, id int64) (bool, error) {
	var listing *model.MarketListing
	err := s.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		l, err := tx.TakeExpiredMarketListing(ctx, id, s.now())
		if err != nil {
			return err
		}
		// 归还时保留原获得时间，收藏顺序不变
		if err := tx.InsertInstance(ctx, l.Item.TransferTo(l.SellerID, l.Item.ObtainedAt)); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "expire market listing")
	}

	s.reaper.Cancel(marketReapKey(id))
	s.metrics.RecordReap(kindMarket, 1)
	s.logger.Info("market listing expired", "listing_id", id, "code", listing.Code, "seller_id", listing.SellerID)

	c := collectibleOf(s.catalog, s.logger, listing.Item.CollectibleID)
	notifyBestEffort(ctx, s.messenger, s.metrics, s.logger, listing.SellerID, expiryNotice(kindMarket, c, listing.Code))
	return true, nil
}

func (s *MarketService) sweepLazily(ctx context.Context) {
	if _, err := s.ExpireSweep(ctx); err != nil {
		s.logger.Warn("lazy market sweep failed", "error", err)
	}
}

// uniqueCode 生成未被占用的购买码
func uniqueCode(r Rand, exists func(code string) (bool, error)) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := GenerateCode(r, ListingCodeLength)
		taken, err := exists(code)
		if err != nil {
			return "", storeErr(err, "check code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", transientErr(nil, "no free listing code")
}

// notifyBestEffort 发送通知，失败只记录日志
func notifyBestEffort(ctx context.Context, m messenger.Messenger, bm *metrics.BazaarMetrics, l logger.Logger, channelID, content string) {
	err := m.SendMessage(ctx, channelID, content)
	bm.RecordNotice(err)
	if err != nil {
		l.Warn("failed to send notice", "channel_id", channelID, "error", err)
	}
}
