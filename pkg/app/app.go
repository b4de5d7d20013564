package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var ErrAppAlreadyRunning = errors.New("application is already running")

// Server 定义了服务接口（HTTP、调度器等）
type Server interface {
	Start() error
	Stop() error
}

// Closer 定义了资源清理接口（Redis、DB、Kafka 等）
type Closer interface {
	Close() error
}

// BaseApp 管理服务启动、信号监听与逆序资源释放
type BaseApp struct {
	opts    Options
	logger  logger.Logger
	servers []Server
	closers []Closer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex

	started  atomic.Bool
	stopOnce sync.Once
}

// NewBaseApp 创建一个新的 BaseApp 实例
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BaseApp{
		opts:   o,
		logger: o.Logger.Named(o.Name),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context 返回应用生命周期 context，Shutdown 时取消
func (a *BaseApp) Context() context.Context {
	return a.ctx
}

// Run 启动所有服务并阻塞到收到信号
func (a *BaseApp) Run() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	info := GetInfo()
	a.logger.Info("application starting",
		"name", info.AppName,
		"version", info.Version,
		"commit", info.GitCommit,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	for _, srv := range a.servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "error", err)
			_ = a.Shutdown()
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-a.ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	return a.Shutdown()
}

// Shutdown 并发停止服务，再逆序关闭资源；并发调用会阻塞到首次关闭完成
func (a *BaseApp) Shutdown() error {
	a.stopOnce.Do(a.shutdown)
	return nil
}

func (a *BaseApp) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancel()
	a.logger.Info("application shutting down")

	var g errgroup.Group
	for _, srv := range a.servers {
		s := srv
		g.Go(func() error {
			if err := s.Stop(); err != nil {
				a.logger.Error("failed to stop server", "error", err)
				return err
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("all servers stopped")
	case <-time.After(a.opts.StopTimeout):
		a.logger.Warn("shutdown timeout, forcing exit")
	}

	// LIFO
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}

	a.logger.Info("application exited")
	_ = a.logger.Sync()
}

// AppendServer 添加服务器
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加资源清理组件
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}
