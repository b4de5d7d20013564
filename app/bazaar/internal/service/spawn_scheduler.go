package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// nextFire 下一个触发时刻：本小时内第一个大于当前分钟的偏移，否则下一小时的第一个偏移，秒归零
func nextFire(now time.Time, offsets []int) time.Time {
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	for _, o := range offsets {
		if o > now.Minute() {
			return hour.Add(time.Duration(o) * time.Minute)
		}
	}
	return hour.Add(time.Hour + time.Duration(offsets[0])*time.Minute)
}

// NextDelay 距离下一个触发时刻的时长，offsets 须升序且非空
func NextDelay(now time.Time, offsets []int) time.Duration {
	return nextFire(now, offsets).Sub(now)
}

var _ cron.Schedule = (*MinuteSchedule)(nil)

// MinuteSchedule 按小时内分钟偏移触发的 cron 调度，偏移可热更新
type MinuteSchedule struct {
	mu      sync.RWMutex
	offsets []int
}

// NewMinuteSchedule 创建调度
func NewMinuteSchedule(offsets []int) (*MinuteSchedule, error) {
	s := &MinuteSchedule{}
	if err := s.SetOffsets(offsets); err != nil {
		return nil, err
	}
	return s, nil
}

// Next 实现 cron.Schedule
func (s *MinuteSchedule) Next(t time.Time) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nextFire(t, s.offsets)
}

// Offsets 当前偏移
func (s *MinuteSchedule) Offsets() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.offsets...)
}

// SetOffsets 更新偏移，下一次计算触发时刻时生效
func (s *MinuteSchedule) SetOffsets(offsets []int) error {
	normalized, err := NormalizeOffsets(offsets)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.offsets = normalized
	s.mu.Unlock()
	return nil
}

// CycleGuard 多进程部署时保证同一时刻只有一个进程执行刷新周期，*redis.Lock 满足该接口
type CycleGuard interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// CycleReport 一次刷新周期的结果
type CycleReport struct {
	Channels int
	Spawned  int
	Failed   int
	Skipped  bool // 周期锁被其他进程持有或上一周期未结束
}

// SpawnScheduler 定时刷新
type SpawnScheduler struct {
	logger   logger.Logger
	spawns   *SpawnService
	repo     repository.EconomyRepository
	schedule *MinuteSchedule
	limiter  *rate.Limiter
	guard    CycleGuard
	running  atomic.Bool
}

// NewSpawnScheduler 创建定时刷新；guard 可为 nil（单进程）
func NewSpawnScheduler(
	l logger.Logger,
	spawns *SpawnService,
	repo repository.EconomyRepository,
	cfg *SpawnConfig,
	guard CycleGuard,
) (*SpawnScheduler, error) {
	schedule, err := NewMinuteSchedule(cfg.Offsets)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}

	return &SpawnScheduler{
		logger:   l.Named("service.spawn_scheduler"),
		spawns:   spawns,
		repo:     repo,
		schedule: schedule,
		limiter:  rate.NewLimiter(limit, 1),
		guard:    guard,
	}, nil
}

// Schedule 供 cron 注册的调度
func (s *SpawnScheduler) Schedule() cron.Schedule {
	return s.schedule
}

// Offsets 当前触发分钟
func (s *SpawnScheduler) Offsets() []int {
	return s.schedule.Offsets()
}

// UpdateOffsets 热更新触发分钟
func (s *SpawnScheduler) UpdateOffsets(offsets []int) error {
	if err := s.schedule.SetOffsets(offsets); err != nil {
		return err
	}
	s.logger.Info("spawn offsets updated", "offsets", s.schedule.Offsets())
	return nil
}

// RunCycle 为所有开启刷新的频道各创建一个刷新
//
// 单个频道失败只记录日志，不中断本周期。
func (s *SpawnScheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{}
	if !s.running.CompareAndSwap(false, true) {
		report.Skipped = true
		return report, nil
	}
	defer s.running.Store(false)

	// 1. 多进程互斥
	if s.guard != nil {
		ok, err := s.guard.TryLock(ctx)
		if err != nil {
			return report, errors.Wrap(err, "acquire spawn cycle lock")
		}
		if !ok {
			s.logger.Debug("spawn cycle held by another instance")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := s.guard.Unlock(context.Background()); err != nil {
				s.logger.Warn("failed to release spawn cycle lock", "error", err)
			}
		}()
	}

	// 2. 遍历开启刷新的频道
	channels, err := s.repo.ListSpawnChannels(ctx)
	if err != nil {
		return report, storeErr(err, "list spawn channels")
	}
	report.Channels = len(channels)

	for _, ch := range channels {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}

		// 3. 清掉上一轮残留的刷新再创建新刷新
		if err := s.spawns.ClearChannel(ctx, ch.ChannelID); err != nil {
			s.logger.Warn("failed to clear previous spawn", "channel_id", ch.ChannelID, "error", err)
		}
		if _, err := s.spawns.Spawn(ctx, ch.ChannelID, nil, SourceSchedule); err != nil {
			report.Failed++
			s.logger.Warn("spawn failed", "channel_id", ch.ChannelID, "error", err)
			continue
		}
		report.Spawned++
	}

	s.logger.Info("spawn cycle finished",
		"channels", report.Channels,
		"spawned", report.Spawned,
		"failed", report.Failed,
		"next_in", NextDelay(time.Now(), s.schedule.Offsets()).String(),
	)
	return report, nil
}
