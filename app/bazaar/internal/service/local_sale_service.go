package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// LocalSaleService 频道出售
type LocalSaleService struct {
	logger    logger.Logger
	repo      repository.EconomyRepository
	messenger messenger.Messenger
	purchaser *Purchaser
	reaper    *Reaper
	catalog   *model.Catalog
	ids       idgen.Generator
	rand      Rand
	metrics   *metrics.BazaarMetrics
	config    *LocalSaleConfig
	now       func() time.Time
}

// NewLocalSaleService 创建频道出售服务
func NewLocalSaleService(
	l logger.Logger,
	repo repository.EconomyRepository,
	m messenger.Messenger,
	purchaser *Purchaser,
	reaper *Reaper,
	catalog *model.Catalog,
	ids idgen.Generator,
	r Rand,
	bm *metrics.BazaarMetrics,
	cfg *LocalSaleConfig,
) *LocalSaleService {
	return &LocalSaleService{
		logger:    l.Named("service.local_sale"),
		repo:      repo,
		messenger: m,
		purchaser: purchaser,
		reaper:    reaper,
		catalog:   catalog,
		ids:       ids,
		rand:      r,
		metrics:   bm,
		config:    cfg,
		now:       time.Now,
	}
}

func localReapKey(id int64) string {
	return "local:" + strconv.FormatInt(id, 10)
}

// List 在频道内出售收藏中第 index 个实例；每个卖家每个频道同时只能有一个出售
func (s *LocalSaleService) List(ctx context.Context, sellerID string, index int, price int64, channelID string) (sale *model.LocalSale, err error) {
	defer func() { s.metrics.RecordListing(kindLocal, outcome(err)) }()

	if price < 1 {
		return nil, ErrInvalidPrice
	}

	// 1. 频道资格
	ok, err := s.messenger.IsEligible(ctx, channelID, model.FeatureSale)
	if err != nil {
		return nil, storeErr(err, "check sale eligibility")
	}
	if !ok {
		return nil, errors.Wrapf(ErrChannelNotEligible, "channel %s", channelID)
	}

	s.sweepLazily(ctx, channelID)

	seller, err := s.repo.GetAccount(ctx, sellerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, storeErr(err, "load seller")
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, errors.Wrap(err, "generate sale id")
	}

	err = s.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		// 2. 同频道只能有一个进行中的出售（部分唯一索引兜底并发）
		active, err := tx.HasActiveLocalSale(ctx, sellerID, channelID)
		if err != nil {
			return storeErr(err, "check active sale")
		}
		if active {
			return ErrDuplicateActive
		}

		// 3. 从收藏中移出
		inst, err := tx.TakeInstance(ctx, sellerID, index)
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrNotFound, "collection index %d", index)
		}
		if err != nil {
			return storeErr(err, "take instance")
		}

		// 4. 频道内唯一购买码
		code, err := uniqueCode(s.rand, func(code string) (bool, error) {
			return tx.LocalCodeExists(ctx, channelID, code)
		})
		if err != nil {
			return err
		}

		now := s.now()
		sale = &model.LocalSale{
			ID:         id,
			Code:       code,
			ChannelID:  channelID,
			Item:       *inst,
			SellerID:   sellerID,
			SellerName: seller.Name,
			Price:      price,
			Status:     model.SaleStatusActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.config.TTL),
		}
		err = tx.InsertLocalSale(ctx, sale)
		switch {
		case errors.Is(err, repository.ErrActiveSaleExists):
			return ErrDuplicateActive
		case errors.Is(err, repository.ErrDuplicate):
			// 购买码并发冲突
			return transientErr(err, "listing code taken")
		case err != nil:
			return storeErr(err, "insert local sale")
		}
		return nil
	})
	if err = txErr(err, "list locally"); err != nil {
		return nil, err
	}

	s.reaper.Schedule(localReapKey(sale.ID), sale.ExpiresAt, func(ctx context.Context) {
		if _, err := s.expireOne(ctx, sale.ID); err != nil {
			s.logger.Warn("scheduled local reap failed", "sale_id", sale.ID, "error", err)
		}
	})

	s.logger.Info("local sale created",
		"sale_id", sale.ID,
		"code", sale.Code,
		"channel_id", channelID,
		"seller_id", sellerID,
		"price", price,
	)
	return sale, nil
}

// Cancel 撤回卖家在频道内进行中的出售；code 非空时按购买码定位
func (s *LocalSaleService) Cancel(ctx context.Context, sellerID, channelID, code string) (*model.LocalSale, error) {
	s.sweepLazily(ctx, channelID)

	// 1. 定位出售
	var (
		sale *model.LocalSale
		err  error
	)
	if code = NormalizeCode(code); code == "" {
		sale, err = s.repo.GetActiveLocalSaleBySeller(ctx, sellerID, channelID)
	} else {
		sale, err = s.repo.GetActiveLocalSaleByCode(ctx, channelID, code)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrap(ErrNotFound, "no active sale found")
	}
	if err != nil {
		return nil, storeErr(err, "load local sale")
	}

	// 2. 只有卖家本人能撤回
	if sale.SellerID != sellerID {
		return nil, ErrUnauthorized
	}

	// 3. 置为 cancelled 并归还实例；已过期或已售出则失败
	var closed *model.LocalSale
	err = s.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		c, err := tx.CloseLocalSale(ctx, sale.ID, model.SaleStatusCancelled, s.now())
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAvailable
		}
		if err != nil {
			return storeErr(err, "cancel local sale")
		}
		if err := tx.InsertInstance(ctx, c.Item.TransferTo(c.SellerID, c.Item.ObtainedAt)); err != nil {
			return storeErr(err, "return instance")
		}
		closed = c
		return nil
	})
	if err = txErr(err, "cancel local sale"); err != nil {
		return nil, err
	}

	s.reaper.Cancel(localReapKey(closed.ID))
	s.logger.Info("local sale cancelled", "sale_id", closed.ID, "channel_id", channelID, "seller_id", sellerID)
	return closed, nil
}

// Browse 频道内进行中的出售
func (s *LocalSaleService) Browse(ctx context.Context, channelID string) ([]*model.LocalSale, error) {
	s.sweepLazily(ctx, channelID)

	list, err := s.repo.ListActiveLocalSales(ctx, channelID)
	if err != nil {
		return nil, storeErr(err, "list local sales")
	}
	return list, nil
}

// Purchase 按购买码购买频道内的出售
func (s *LocalSaleService) Purchase(ctx context.Context, buyerID, code, channelID string) (*PurchaseResult, error) {
	s.sweepLazily(ctx, channelID)

	res, err := s.purchaser.purchase(ctx, buyerID, localTarget{channelID: channelID, code: NormalizeCode(code)})
	if err != nil {
		return nil, err
	}
	s.reaper.Cancel(localReapKey(res.ListingID))
	return res, nil
}

// ExpireSweep 回收到期出售；channelID 为空时扫描全部频道
func (s *LocalSaleService) ExpireSweep(ctx context.Context, channelID string) (int, error) {
	ids, err := s.repo.ListExpiredLocalSaleIDs(ctx, channelID, s.now())
	if err != nil {
		return 0, storeErr(err, "list expired local sales")
	}

	reaped := 0
	for _, id := range ids {
		ok, err := s.expireOne(ctx, id)
		if err != nil {
			s.logger.Warn("failed to expire local sale", "sale_id", id, "error", err)
			continue
		}
		if ok {
			reaped++
		}
	}
	return reaped, nil
}

// expireOne 置为 expired 并将实例归还卖家；已成交、已撤回或已回收时返回 false
func (s *LocalSaleService) expireOne(ctx context.Context, id int64) (bool, error) {
	var sale *model.LocalSale
	err := s.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		c, err := tx.CloseLocalSale(ctx, id, model.SaleStatusExpired, s.now())
		if err != nil {
			return err
		}
		if err := tx.InsertInstance(ctx, c.Item.TransferTo(c.SellerID, c.Item.ObtainedAt)); err != nil {
			return err
		}
		sale = c
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "expire local sale")
	}

	s.reaper.Cancel(localReapKey(id))
	s.metrics.RecordReap(kindLocal, 1)
	s.logger.Info("local sale expired", "sale_id", id, "channel_id", sale.ChannelID, "seller_id", sale.SellerID)

	c := collectibleOf(s.catalog, s.logger, sale.Item.CollectibleID)
	notifyBestEffort(ctx, s.messenger, s.metrics, s.logger, sale.SellerID, expiryNotice(kindLocal, c, sale.Code))
	return true, nil
}

func (s *LocalSaleService) sweepLazily(ctx context.Context, channelID string) {
	if _, err := s.ExpireSweep(ctx, strings.TrimSpace(channelID)); err != nil {
		s.logger.Warn("lazy local sweep failed", "channel_id", channelID, "error", err)
	}
}
