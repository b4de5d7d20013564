package main

import (
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/manager"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/messenger"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/service"
	"github.com/lk2023060901/shardbazaar/pkg/app"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/database/redis"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/mq/kafka"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
	"github.com/lk2023060901/shardbazaar/pkg/prometheus"
	"github.com/lk2023060901/shardbazaar/pkg/scheduler"
	"github.com/lk2023060901/shardbazaar/pkg/sentry"
	"github.com/lk2023060901/shardbazaar/pkg/web"
)

// 存储驱动
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// StoreConfig 存储选择
type StoreConfig struct {
	// Driver 经济数据存储：memory 或 postgres
	Driver string `mapstructure:"driver" validate:"oneof=memory postgres"`
	// SpawnStore 刷新槽位存储：memory 或 redis（多进程部署必须用 redis）
	SpawnStore string `mapstructure:"spawn_store" validate:"oneof=memory redis"`
	// Seed memory 驱动启动时导入的数据
	Seed SeedConfig `mapstructure:"seed"`
}

// IDGenConfig ID 生成配置
type IDGenConfig struct {
	// MachineID sonyflake 机器号，多进程部署时每个进程唯一
	MachineID uint16 `mapstructure:"machine_id"`
}

// Config 定义 Bazaar 服务的完整配置结构
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// 存储选择
	Store StoreConfig `mapstructure:"store"`

	// Database 配置
	Database postgres.Config `mapstructure:"database"`

	// Redis 配置
	Redis redis.Config `mapstructure:"redis"`

	// Kafka 配置
	Kafka kafka.Config `mapstructure:"kafka"`

	// 消息通道配置
	Messenger messenger.Config `mapstructure:"messenger"`

	// 业务配置
	Service service.Config `mapstructure:"service"`

	// 刷新槽位配置
	Registry manager.RegistryConfig `mapstructure:"registry"`

	// 协程池与定时任务
	Pool      pool.Config      `mapstructure:"pool"`
	Scheduler scheduler.Config `mapstructure:"scheduler"`

	// ID 生成
	IDGen IDGenConfig `mapstructure:"idgen"`

	// HTTP 服务配置
	HTTP web.Config `mapstructure:"http"`

	// Prometheus 配置
	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 指标配置
	Metrics metrics.Config `mapstructure:"metrics"`

	// 错误上报配置
	Sentry sentry.Config `mapstructure:"sentry"`
}

func main() {
	var cfg Config

	// 1. 加载配置
	mgr, err := app.LoadConfig(&cfg)
	if err != nil {
		panic(err)
	}

	// 2. 初始化主日志
	l, err := logger.New(&cfg.Log, logger.WithName(app.AppName))
	if err != nil {
		panic(err)
	}

	// 3. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, mgr, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		_ = l.Sync()
		return
	}
	defer cleanup()

	// 4. 运行服务
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
