package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/handler"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/manager"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/service"
	"github.com/lk2023060901/shardbazaar/pkg/app"
	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/database/redis"
	"github.com/lk2023060901/shardbazaar/pkg/idgen"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/mq/kafka"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/lk2023060901/shardbazaar/pkg/prometheus"
	"github.com/lk2023060901/shardbazaar/pkg/scheduler"
	"github.com/lk2023060901/shardbazaar/pkg/sentry"
	"github.com/lk2023060901/shardbazaar/pkg/web"
	webmetrics "github.com/lk2023060901/shardbazaar/pkg/web/metrics"
	"github.com/lk2023060901/shardbazaar/pkg/web/middleware"
)

// cycleLockKey 多进程刷新周期锁
const cycleLockKey = "bazaar:lock:spawn_cycle"

// ============ 配置 ============

// provideServiceConfig 合并默认值并校验业务配置
func provideServiceConfig(cfg *Config) (*service.Config, error) {
	merged, err := config.MergeConfig(service.DefaultConfig(), &cfg.Service)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// provideTierTable 提供稀有度表
func provideTierTable(sc *service.Config) service.TierTable {
	return sc.Tiers
}

// provideSpawnConfig 提供刷新配置
func provideSpawnConfig(sc *service.Config) *service.SpawnConfig {
	return &sc.Spawn
}

// provideMarketConfig 提供全服商店配置
func provideMarketConfig(sc *service.Config) *service.MarketConfig {
	return &sc.Market
}

// provideLocalSaleConfig 提供频道出售配置
func provideLocalSaleConfig(sc *service.Config) *service.LocalSaleConfig {
	return &sc.LocalSale
}

// provideReaperConfig 提供到期回收配置
func provideReaperConfig(sc *service.Config) *service.ReaperConfig {
	return &sc.Reaper
}

// provideRegistryConfig 提供刷新槽位配置
func provideRegistryConfig(cfg *Config) (*manager.RegistryConfig, error) {
	return config.MergeConfig(manager.DefaultRegistryConfig(), &cfg.Registry)
}

// provideMessengerConfig 提供消息通道配置
func provideMessengerConfig(cfg *Config) (*messenger.Config, error) {
	merged, err := config.MergeConfig(messenger.DefaultConfig(), &cfg.Messenger)
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// provideMetricsConfig 提供指标配置
func provideMetricsConfig(cfg *Config) *metrics.Config {
	return &cfg.Metrics
}

// providePrometheusConfig 提供 Prometheus 配置
func providePrometheusConfig(cfg *Config) *prometheus.Config {
	return &cfg.Prometheus
}

// ============ 基础设施 ============

// providePostgresClient memory 驱动下不连接数据库，返回 nil
func providePostgresClient(cfg *Config, l logger.Logger) (*postgres.Client, func(), error) {
	if cfg.Store.Driver != DriverPostgres {
		return nil, func() {}, nil
	}
	client, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			l.Error("failed to close postgres client", "error", err)
		}
	}, nil
}

// provideRedisClient 刷新槽位使用 memory 存储时不连接 redis，返回 nil
func provideRedisClient(cfg *Config, l logger.Logger) (*redis.Client, func(), error) {
	if cfg.Store.SpawnStore != DriverRedis {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			l.Error("failed to close redis client", "error", err)
		}
	}, nil
}

// provideIDGenerator 提供 sonyflake ID 生成器
func provideIDGenerator(cfg *Config) (idgen.Generator, error) {
	return idgen.NewSonyflake(cfg.IDGen.MachineID)
}

// providePool 提供协程池
func providePool(cfg *Config, l logger.Logger) (*pool.Pool, error) {
	return pool.New(&cfg.Pool, pool.WithLogger(l.Named("pool")))
}

// provideScheduler 提供定时任务调度器
func provideScheduler(cfg *Config, l logger.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(&cfg.Scheduler, scheduler.WithLogger(l.Named("scheduler")))
}

// ============ 数据层 ============

// provideRepository 按驱动创建经济仓储；memory 驱动导入 seed 数据
func provideRepository(
	cfg *Config,
	client *postgres.Client,
	bm *metrics.BazaarMetrics,
	ids idgen.Generator,
	l logger.Logger,
) (repository.EconomyRepository, error) {
	if err := config.NewValidator().Validate(&cfg.Store); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case DriverPostgres:
		daos := &repository.DAOs{
			Account:     dao.NewAccountDAO(l, bm),
			Instance:    dao.NewInstanceDAO(l, bm),
			Channel:     dao.NewChannelDAO(l, bm),
			Collectible: dao.NewCollectibleDAO(l, bm),
			Market:      dao.NewMarketDAO(l, bm),
			LocalSale:   dao.NewLocalSaleDAO(l, bm),
		}
		return repository.NewEconomyRepository(client, daos, l), nil

	case DriverMemory:
		collectibles := cfg.Store.Seed.collectibles()
		repo := repository.NewMemoryRepository(collectibles)
		if err := seedMemory(context.Background(), repo, &cfg.Store.Seed, model.NewCatalog(collectibles), ids); err != nil {
			return nil, err
		}
		l.Warn("using in-memory economy store, data is lost on restart",
			"collectibles", len(collectibles),
			"channels", len(cfg.Store.Seed.Channels),
			"accounts", len(cfg.Store.Seed.Accounts))
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// provideCatalog 启动时加载收藏品目录，之后只读
func provideCatalog(repo repository.EconomyRepository, l logger.Logger) (*model.Catalog, error) {
	list, err := repo.ListCollectibles(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load collectibles: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("collectible catalog is empty")
	}
	l.Info("collectible catalog loaded", "count", len(list))
	return model.NewCatalog(list), nil
}

// provideSpawnStore 按配置选择刷新槽位存储
func provideSpawnStore(client *redis.Client, l logger.Logger) dao.SpawnStore {
	if client == nil {
		return dao.NewMemorySpawnStore()
	}
	return dao.NewRedisSpawnStore(client, l)
}

// provideCycleGuard redis 可用时用分布式锁保证同一时刻只有一个进程执行刷新周期
func provideCycleGuard(client *redis.Client, sc *service.SpawnConfig) service.CycleGuard {
	if client == nil {
		return nil
	}
	return redis.NewLock(client, cycleLockKey, sc.CycleLockTTL)
}

// ============ 消息通道 ============

// provideMessenger 按驱动创建消息通道；kafka 驱动返回关闭生产者的 cleanup
func provideMessenger(
	cfg *Config,
	mc *messenger.Config,
	repo repository.EconomyRepository,
	l logger.Logger,
) (messenger.Messenger, func(), error) {
	if mc.Driver != "kafka" {
		return messenger.NewLogMessenger(repo, l), func() {}, nil
	}

	client, err := kafka.New(&cfg.Kafka, kafka.WithLogger(l.Named("kafka")))
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	return messenger.NewKafkaMessenger(client, repo, mc, l), func() {
		if err := client.Close(); err != nil {
			l.Error("failed to close kafka client", "error", err)
		}
	}, nil
}

// ============ HTTP ============

// provideSentry 提供错误上报客户端，未配置 DSN 时只在本地丢弃
func provideSentry(cfg *Config, l logger.Logger) (*sentry.Client, error) {
	sc := cfg.Sentry
	if sc.Release == "" {
		sc.Release = app.GetInfo().Version
	}
	client, err := sentry.New(&sc)
	if err != nil {
		return nil, err
	}
	if !client.Enabled() {
		l.Info("sentry disabled, no dsn configured")
	}
	return client, nil
}

// provideHTTPMetrics 提供 HTTP 指标
func provideHTTPMetrics(cfg *Config) *webmetrics.HTTPMetrics {
	ns := cfg.Metrics.Namespace
	if ns == "" {
		ns = metrics.DefaultConfig().Namespace
	}
	return webmetrics.New(ns)
}

// provideWebServer 创建 HTTP 服务并挂载路由
func provideWebServer(
	cfg *Config,
	l logger.Logger,
	promClient *prometheus.Client,
	hm *webmetrics.HTTPMetrics,
	reporter *sentry.Client,
	h *handler.CommandHandler,
) (*web.Server, error) {
	srv, err := web.NewServer(&cfg.HTTP, l)
	if err != nil {
		return nil, err
	}

	r := srv.Router()
	r.GET("/healthz", func(c *gin.Context) {
		web.Success(c, gin.H{"status": "ok", "version": app.GetInfo().Version})
	})
	r.GET(promClient.Path(), gin.WrapH(promClient.Handler()))

	// 指标与错误上报只作用于业务接口
	api := r.Group("", middleware.Metrics(hm), middleware.Report(reporter))
	h.Register(api)

	return srv, nil
}

// ============ 组装 ============

// provideAppOptions 提供应用选项
func provideAppOptions(l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(app.AppName),
		app.WithLogger(l),
	}
}

// provideAppComponents 注册指标、监听配置变更并汇总服务与资源
func provideAppComponents(
	httpServer *web.Server,
	background *service.Background,
	cycle *service.SpawnScheduler,
	promClient *prometheus.Client,
	bm *metrics.BazaarMetrics,
	hm *webmetrics.HTTPMetrics,
	reporter *sentry.Client,
	mgr config.Manager,
	l logger.Logger,
) (app.Components, error) {
	// 1. 注册指标到 Prometheus
	if err := bm.Register(promClient.Registry()); err != nil {
		return app.Components{}, fmt.Errorf("register bazaar metrics: %w", err)
	}
	if err := hm.Register(promClient.Registry()); err != nil {
		return app.Components{}, fmt.Errorf("register http metrics: %w", err)
	}

	// 2. 刷新分钟热更新
	if err := mgr.Watch(offsetReloader(mgr, cycle, l)); err != nil {
		return app.Components{}, err
	}

	return app.Components{
		Servers: []app.Server{
			background,
			httpServer,
		},
		Closers: []app.Closer{
			app.CloserFunc(l.Sync),
			reporter,
		},
	}, nil
}

// offsetReloader 配置文件变化时重新读取 service.spawn.offsets
func offsetReloader(mgr config.Manager, cycle *service.SpawnScheduler, l logger.Logger) func() {
	return func() {
		var offsets []int
		if err := mgr.UnmarshalKey("service.spawn.offsets", &offsets); err != nil {
			l.Warn("failed to reload spawn offsets", "error", err)
			return
		}
		if len(offsets) == 0 {
			return
		}
		if err := cycle.UpdateOffsets(offsets); err != nil {
			l.Warn("rejected spawn offsets", "offsets", offsets, "error", err)
			return
		}
		l.Info("spawn offsets reloaded", "offsets", cycle.Offsets())
	}
}
