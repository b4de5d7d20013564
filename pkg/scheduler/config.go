package scheduler

import (
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/config"
)

// BackoffStrategy 重试退避策略
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffExponential BackoffStrategy = "exponential"
)

// Config 调度器配置
type Config struct {
	// Timezone 时区，空表示本地时区
	Timezone string `mapstructure:"timezone"`
	// WithSeconds cron 表达式是否包含秒字段
	WithSeconds bool `mapstructure:"with_seconds"`
	// SkipIfStillRunning 上一次未结束时跳过本次执行
	SkipIfStillRunning bool `mapstructure:"skip_if_still_running"`
	// DefaultJobOptions 任务默认选项
	DefaultJobOptions JobOptions `mapstructure:"default_job_options"`
}

// JobOptions 任务选项
type JobOptions struct {
	MaxRetries        int             `mapstructure:"max_retries"`
	BackoffStrategy   BackoffStrategy `mapstructure:"backoff_strategy"`
	InitialBackoff    time.Duration   `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration   `mapstructure:"max_backoff"`
	BackoffMultiplier float64         `mapstructure:"backoff_multiplier"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		SkipIfStillRunning: true,
		DefaultJobOptions: JobOptions{
			BackoffStrategy:   BackoffFixed,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// JobOption 单个任务的选项
type JobOption func(*JobOptions)

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(n int) JobOption {
	return func(o *JobOptions) { o.MaxRetries = n }
}

// WithNoRetry 失败不重试
func WithNoRetry() JobOption {
	return func(o *JobOptions) { o.MaxRetries = 0 }
}

// WithBackoffStrategy 设置退避策略
func WithBackoffStrategy(s BackoffStrategy) JobOption {
	return func(o *JobOptions) { o.BackoffStrategy = s }
}

// WithInitialBackoff 设置首次重试间隔
func WithInitialBackoff(d time.Duration) JobOption {
	return func(o *JobOptions) { o.InitialBackoff = d }
}

// backoff 计算第 attempt 次重试前的等待时间（attempt 从 1 开始）
func (o JobOptions) backoff(attempt int) time.Duration {
	d := o.InitialBackoff
	if o.BackoffStrategy == BackoffExponential {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * o.BackoffMultiplier)
			if o.MaxBackoff > 0 && d >= o.MaxBackoff {
				return o.MaxBackoff
			}
		}
	}
	return d
}

func mergeConfig(cfg *Config) (*Config, error) {
	return config.MergeConfig(DefaultConfig(), cfg)
}
