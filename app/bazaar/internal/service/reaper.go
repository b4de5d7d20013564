package service

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/pool"
)

// Reaper 挂单到期的一次性定时回收
//
// 定时器只用于缩短回收延迟，进程重启后丢失；周期扫描才是到期回收的保证。
type Reaper struct {
	logger logger.Logger
	pool   *pool.Pool
	config *ReaperConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewReaper 创建回收器，任务在协程池中执行
func NewReaper(l logger.Logger, p *pool.Pool, cfg *ReaperConfig) *Reaper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reaper{
		logger: l.Named("service.reaper"),
		pool:   p,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule 在 at 之后执行 fn；同一 key 重复调度会替换旧定时器
func (r *Reaper) Schedule(key string, at time.Time, fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if old, ok := r.timers[key]; ok {
		old.Stop()
	}

	delay := time.Until(at) + r.config.Grace
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.timers[key] == timer {
			delete(r.timers, key)
		}
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}

		err := r.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(r.ctx, r.config.Timeout)
			defer cancel()
			fn(ctx)
		})
		if err != nil {
			// 周期扫描会兜底
			r.logger.Warn("failed to submit reap task", "key", key, "error", err)
		}
	})
	r.timers[key] = timer
}

// Cancel 取消尚未触发的定时器
func (r *Reaper) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	timer, ok := r.timers[key]
	if !ok {
		return false
	}
	delete(r.timers, key)
	return timer.Stop()
}

// Pending 尚未触发的定时器数量
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop 停止全部定时器并取消运行中的回收
func (r *Reaper) Stop() {
	r.mu.Lock()
	r.closed = true
	for key, timer := range r.timers {
		timer.Stop()
		delete(r.timers, key)
	}
	r.mu.Unlock()
	r.cancel()
}
