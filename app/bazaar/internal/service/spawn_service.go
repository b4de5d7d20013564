package service

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/manager"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// 刷新来源（指标标签）
const (
	SourceSchedule = "schedule"
	SourceForce    = "force"
)

// SpawnService 刷新与认领服务
type SpawnService struct {
	logger    logger.Logger
	repo      repository.EconomyRepository
	registry  *manager.SpawnRegistry
	messenger messenger.Messenger
	selector  *Selector
	ids       idgen.Generator
	rand      Rand
	metrics   *metrics.BazaarMetrics
	now       func() time.Time
}

// NewSpawnService 创建刷新服务
func NewSpawnService(
	l logger.Logger,
	repo repository.EconomyRepository,
	registry *manager.SpawnRegistry,
	m messenger.Messenger,
	selector *Selector,
	ids idgen.Generator,
	r Rand,
	bm *metrics.BazaarMetrics,
) *SpawnService {
	return &SpawnService{
		logger:    l.Named("service.spawn"),
		repo:      repo,
		registry:  registry,
		messenger: m,
		selector:  selector,
		ids:       ids,
		rand:      r,
		metrics:   bm,
		now:       time.Now,
	}
}

// Spawn 在频道内创建刷新，覆盖已有刷新；target 为 nil 时随机抽取
func (s *SpawnService) Spawn(ctx context.Context, channelID string, target *model.Collectible, source string) (sp *model.ActiveSpawn, err error) {
	defer func() { s.metrics.RecordSpawn(source, err) }()

	// 1. 频道资格
	ok, err := s.messenger.IsEligible(ctx, channelID, model.FeatureSpawn)
	if err != nil {
		return nil, storeErr(err, "check spawn eligibility")
	}
	if !ok {
		return nil, errors.Wrapf(ErrChannelNotEligible, "channel %s", channelID)
	}

	// 2. 选定收藏品
	if target == nil {
		if target, err = s.selector.Draw(); err != nil {
			return nil, err
		}
	}

	// 3. 写入槽位
	now := s.now()
	sp = &model.ActiveSpawn{
		ChannelID:   channelID,
		Collectible: *target,
		Code:        GenerateCode(s.rand, SpawnCodeLength),
		CreatedAt:   now,
	}
	if err := s.registry.Put(ctx, sp); err != nil {
		return nil, errors.Wrap(err, "register spawn")
	}

	// 4. 记录频道最近刷新，失败不影响本次刷新
	if err := s.repo.SetLastSpawnSummary(ctx, channelID, spawnSummary(sp), now); err != nil {
		s.logger.Warn("failed to persist spawn summary", "channel_id", channelID, "error", err)
	}

	// 5. 频道公告
	err = s.messenger.SendMessage(ctx, channelID, spawnAnnouncement(sp))
	s.metrics.RecordNotice(err)
	if err != nil {
		s.logger.Warn("failed to announce spawn", "channel_id", channelID, "error", err)
	}

	s.logger.Info("collectible spawned",
		"channel_id", channelID,
		"collectible_id", sp.Collectible.ID,
		"code", sp.Code,
		"source", source,
	)
	return sp, nil
}

// ForceSpawn 立即刷新；target 按 ID 或名称指定，为空时随机
func (s *SpawnService) ForceSpawn(ctx context.Context, channelID, target string) (*model.ActiveSpawn, error) {
	var c *model.Collectible
	if target = strings.TrimSpace(target); target != "" {
		found, err := s.selector.Find(target)
		if err != nil {
			s.metrics.RecordSpawn(SourceForce, err)
			return nil, err
		}
		c = found
	}
	return s.Spawn(ctx, channelID, c, SourceForce)
}

// GetActiveSpawn 频道当前刷新，没有时返回 ErrNotFound
func (s *SpawnService) GetActiveSpawn(ctx context.Context, channelID string) (*model.ActiveSpawn, error) {
	sp, err := s.registry.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, errors.Wrapf(ErrNotFound, "no active spawn in %s", channelID)
	}
	return sp, nil
}

// Claim 按名称认领频道内的刷新
func (s *SpawnService) Claim(ctx context.Context, playerID, channelID, name string) (inst *model.Instance, err error) {
	defer func() { s.metrics.RecordClaim(outcome(err)) }()

	// 1. 玩家必须已注册
	player, err := s.repo.GetAccount(ctx, playerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, storeErr(err, "load player")
	}

	// 2. 读取当前刷新（不走缓存）
	sp, err := s.registry.Load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, errors.Wrapf(ErrNotFound, "no active spawn in %s", channelID)
	}

	// 3. 名称不符不改变任何状态
	if !sp.Matches(name) {
		return nil, ErrWrongGuess
	}

	// 4. 比较删除，只有一个认领者能取走
	taken, err := s.registry.Take(ctx, channelID, sp.Code)
	if err != nil {
		return nil, err
	}
	if taken == nil {
		return nil, ErrNotAvailable
	}

	// 5. 交付实例并清除频道刷新摘要
	id, err := s.ids.NextID()
	if err != nil {
		s.restore(ctx, taken)
		return nil, errors.Wrap(err, "generate instance id")
	}
	now := s.now()
	inst = model.NewInstance(id, playerID, &taken.Collectible, now)

	err = s.repo.WithTx(ctx, func(tx repository.EconomyRepository) error {
		if err := tx.InsertInstance(ctx, inst); err != nil {
			return err
		}
		return tx.SetLastSpawnSummary(ctx, channelID, "", now)
	})
	if err != nil {
		s.restore(ctx, taken)
		return nil, storeErr(err, "deliver claimed instance")
	}

	s.logger.Info("spawn claimed",
		"channel_id", channelID,
		"player_id", playerID,
		"collectible_id", inst.CollectibleID,
		"instance_id", inst.ID,
	)

	err = s.messenger.SendMessage(ctx, channelID, claimNotice(player.Name, &taken.Collectible))
	s.metrics.RecordNotice(err)
	if err != nil {
		s.logger.Warn("failed to announce claim", "channel_id", channelID, "error", err)
	}
	return inst, nil
}

// restore 认领落库失败时放回刷新
func (s *SpawnService) restore(ctx context.Context, sp *model.ActiveSpawn) {
	ok, err := s.registry.Restore(ctx, sp)
	if err != nil {
		s.logger.Error("failed to restore spawn", "channel_id", sp.ChannelID, "code", sp.Code, "error", err)
		return
	}
	if !ok {
		s.logger.Warn("spawn not restored, slot already taken", "channel_id", sp.ChannelID, "code", sp.Code)
	}
}

// ClearChannel 清除频道内的刷新
func (s *SpawnService) ClearChannel(ctx context.Context, channelID string) error {
	return s.registry.Remove(ctx, channelID)
}

// ReapStale 静默回收超过存活时间的刷新
func (s *SpawnService) ReapStale(ctx context.Context) (int, error) {
	n, err := s.registry.ReapStale(ctx)
	s.metrics.RecordReap("spawn", n)
	return n, err
}
