//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/handler"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/manager"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/service"
	"github.com/lk2023060901/shardbazaar/pkg/app"
	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/prometheus"
)

func InitApp(cfg *Config, mgr config.Manager, l logger.Logger) (*app.BaseApp, func(), error) {
	panic(wire.Build(
		// 1. 基础框架 (BaseApp)
		provideAppOptions,
		app.NewBaseApp,

		// 2. 业务配置
		provideServiceConfig,
		provideTierTable,
		provideSpawnConfig,
		provideMarketConfig,
		provideLocalSaleConfig,
		provideReaperConfig,
		provideRegistryConfig,
		provideMessengerConfig,

		// 3. 指标收集
		provideMetricsConfig,
		metrics.New,
		provideHTTPMetrics,

		// 4. 存储客户端（按驱动可为 nil）
		providePostgresClient,
		provideRedisClient,

		// 5. 基础组件
		provideIDGenerator,
		providePool,
		provideScheduler,
		service.NewRand,

		// 6. 数据层
		provideRepository,
		provideCatalog,
		provideSpawnStore,

		// 7. 管理层 (Manager)
		manager.NewSpawnRegistry,

		// 8. 消息通道
		provideMessenger,

		// 9. 服务层 (Service)
		service.NewSelector,
		service.NewReaper,
		service.NewPurchaser,
		service.NewSpawnService,
		service.NewMarketService,
		service.NewLocalSaleService,
		provideCycleGuard,
		service.NewSpawnScheduler,
		service.NewBackground,

		// 10. 接口层 (Handler) 与 HTTP
		handler.NewCommandHandler,
		providePrometheusConfig,
		prometheus.New,
		provideSentry,
		provideWebServer,

		// 11. 组装
		provideAppComponents,
		app.InitApp,
	))
}
