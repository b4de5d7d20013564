package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Config Sentry 配置
type Config struct {
	// 基础配置
	DSN         string `mapstructure:"dsn"`         // Sentry DSN，为空时不上报
	Environment string `mapstructure:"environment"` // 环境 (dev/test/prod)
	Release     string `mapstructure:"release"`     // 版本号
	ServerName  string `mapstructure:"server_name"` // 服务器名称

	// 采样配置
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"` // 错误采样率 (0.0-1.0)

	AttachStacktrace bool `mapstructure:"attach_stacktrace"` // 附加堆栈

	// 超时配置
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 关闭时等待上报的时间

	// 调试配置
	Debug bool `mapstructure:"debug"`

	// 全局标签
	Tags map[string]string `mapstructure:"tags"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment:      "production",
		SampleRate:       1.0,
		AttachStacktrace: true,
		ShutdownTimeout:  2 * time.Second,
	}
}

// toClientOptions 转换为 Sentry SDK 的 ClientOptions
func (c *Config) toClientOptions() sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		ServerName:       c.ServerName,
		SampleRate:       c.SampleRate,
		AttachStacktrace: c.AttachStacktrace,
		Debug:            c.Debug,
	}
}
