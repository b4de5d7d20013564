package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// Options 应用程序配置选项
type Options struct {
	ID          string
	Name        string
	StopTimeout time.Duration
	Logger      logger.Logger
}

// Option 定义配置函数
type Option func(*Options)

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		ID:          uuid.New().String(),
		Name:        AppName,
		StopTimeout: 30 * time.Second,
		Logger:      logger.NewNoop(),
	}
}

// WithLogger 设置应用日志器
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithName 设置应用名称
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithStopTimeout 设置优雅停止超时时间
func WithStopTimeout(t time.Duration) Option {
	return func(o *Options) { o.StopTimeout = t }
}
