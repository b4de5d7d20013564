package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/pkg/app"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/lk2023060901/shardbazaar/pkg/scheduler"
)

var _ app.Server = (*Background)(nil)

// 后台任务名
const (
	JobSpawnCycle  = "spawn-cycle"
	JobMarketSweep = "market-sweep"
	JobLocalSweep  = "local-sweep"
	JobSpawnReap   = "spawn-reap"
)

// Background 周期任务：定时刷新、两类挂单的到期扫描、过期刷新回收
type Background struct {
	logger    logger.Logger
	scheduler *scheduler.Scheduler
	spawns    *SpawnService
	cycle     *SpawnScheduler
	market    *MarketService
	local     *LocalSaleService
	reaper    *Reaper
	pool      *pool.Pool
	config    *Config

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBackground 创建后台任务并注册到调度器
func NewBackground(
	l logger.Logger,
	s *scheduler.Scheduler,
	spawns *SpawnService,
	cycle *SpawnScheduler,
	market *MarketService,
	local *LocalSaleService,
	reaper *Reaper,
	p *pool.Pool,
	cfg *Config,
) (*Background, error) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Background{
		ctx:       ctx,
		cancel:    cancel,
		logger:    l.Named("service.background"),
		scheduler: s,
		spawns:    spawns,
		cycle:     cycle,
		market:    market,
		local:     local,
		reaper:    reaper,
		pool:      p,
		config:    cfg,
	}
	if err := b.register(); err != nil {
		cancel()
		return nil, err
	}
	return b, nil
}

func (b *Background) register() error {
	// 刷新周期不重试，错过的周期等下一个触发点
	if _, err := b.scheduler.AddSchedule(JobSpawnCycle, b.cycle.Schedule(), b.runSpawnCycle, scheduler.WithNoRetry()); err != nil {
		return errors.Wrap(err, "register spawn cycle")
	}
	if _, err := b.scheduler.AddFunc(JobMarketSweep, b.config.Market.SweepSpec, b.runMarketSweep); err != nil {
		return errors.Wrap(err, "register market sweep")
	}
	if _, err := b.scheduler.AddFunc(JobLocalSweep, b.config.LocalSale.SweepSpec, b.runLocalSweep); err != nil {
		return errors.Wrap(err, "register local sweep")
	}
	if _, err := b.scheduler.AddFunc(JobSpawnReap, b.config.Spawn.ReapSpec, b.runSpawnReap); err != nil {
		return errors.Wrap(err, "register spawn reap")
	}
	return nil
}

func (b *Background) jobContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, timeout)
}

func (b *Background) runSpawnCycle() error {
	ctx, cancel := b.jobContext(30 * time.Minute)
	defer cancel()
	_, err := b.cycle.RunCycle(ctx)
	return err
}

func (b *Background) runMarketSweep() error {
	ctx, cancel := b.jobContext(time.Minute)
	defer cancel()
	n, err := b.market.ExpireSweep(ctx)
	if n > 0 {
		b.logger.Info("market sweep reaped listings", "count", n)
	}
	return err
}

func (b *Background) runLocalSweep() error {
	ctx, cancel := b.jobContext(time.Minute)
	defer cancel()
	n, err := b.local.ExpireSweep(ctx, "")
	if n > 0 {
		b.logger.Info("local sweep reaped sales", "count", n)
	}
	return err
}

func (b *Background) runSpawnReap() error {
	ctx, cancel := b.jobContext(time.Minute)
	defer cancel()
	_, err := b.spawns.ReapStale(ctx)
	return err
}

// Start 启动时先做一次到期扫描，回收停机期间到期的挂单
func (b *Background) Start() error {
	if err := b.runMarketSweep(); err != nil {
		b.logger.Warn("startup market sweep failed", "error", err)
	}
	if err := b.runLocalSweep(); err != nil {
		b.logger.Warn("startup local sweep failed", "error", err)
	}
	b.logger.Info("background jobs starting",
		"spawn_offsets", b.cycle.Offsets(),
		"next_spawn_in", NextDelay(time.Now(), b.cycle.Offsets()).String(),
	)
	return b.scheduler.Start()
}

// Stop 停止调度、定时回收并释放协程池
func (b *Background) Stop() error {
	// 先取消运行中的任务，再等待调度器退出
	b.cancel()
	err := b.scheduler.Stop()
	b.reaper.Stop()
	if perr := b.pool.Release(); perr != nil {
		err = errors.CombineErrors(err, perr)
	}
	return err
}
