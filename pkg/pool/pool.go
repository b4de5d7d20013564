// Package pool 基于 ants 的协程池
package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

// ErrPoolClosed 协程池已关闭
var ErrPoolClosed = errors.New("pool: closed")

// Config 协程池配置
type Config struct {
	// Size 最大并发数
	Size int `mapstructure:"size" validate:"gte=1"`
	// ExpiryDuration 空闲 worker 回收周期
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"`
	// Blocking 池满时 Submit 阻塞等待（默认立即返回错误）
	Blocking bool `mapstructure:"blocking"`
	// ReleaseTimeout 关闭时等待运行中任务的最长时间
	ReleaseTimeout time.Duration `mapstructure:"release_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Size:           64,
		ExpiryDuration: time.Minute,
		ReleaseTimeout: 5 * time.Second,
	}
}

// Pool 协程池
type Pool struct {
	p      *ants.Pool
	config *Config
	logger logger.Logger
}

// Option 配置选项
type Option func(*Pool)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New 创建协程池，任务 panic 会被捕获并记录
func New(cfg *Config, opts ...Option) (*Pool, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge pool config: %w", err)
	}

	p := &Pool{config: newCfg, logger: logger.NewNoop()}
	for _, opt := range opts {
		opt(p)
	}

	ap, err := ants.NewPool(newCfg.Size,
		ants.WithExpiryDuration(newCfg.ExpiryDuration),
		ants.WithNonblocking(!newCfg.Blocking),
		ants.WithPanicHandler(func(r any) {
			p.logger.Error("pool task panicked", "panic", fmt.Sprint(r))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.p = ap
	return p, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	err := p.p.Submit(task)
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Running 运行中的 worker 数
func (p *Pool) Running() int {
	return p.p.Running()
}

// Release 关闭协程池并等待运行中的任务结束
func (p *Pool) Release() error {
	if p.p.IsClosed() {
		return nil
	}
	if err := p.p.ReleaseTimeout(p.config.ReleaseTimeout); err != nil {
		p.logger.Warn("pool release timed out", "running", p.p.Running(), "error", err)
		return err
	}
	return nil
}
