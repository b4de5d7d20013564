package sentry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/shardbazaar/pkg/config"
)

// EventHook 事件发送前回调，返回 nil 丢弃事件
type EventHook func(event *sentry.Event) *sentry.Event

// Option 客户端选项
type Option func(*sentry.ClientOptions)

// WithEventHook 设置发送前回调
func WithEventHook(hook EventHook) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return hook(event)
		}
	}
}

// Stats 统计信息
type Stats struct {
	EventsTotal    uint64 // 总事件数
	EventsCaptured uint64 // 成功捕获数
	EventsDropped  uint64 // 丢弃数（已关闭或被采样/回调丢弃）
}

// Client Sentry 客户端
type Client struct {
	hub    *sentry.Hub // 隔离的 Hub，不使用全局 Hub
	config *Config
	closed atomic.Bool

	stats struct {
		eventsTotal    atomic.Uint64
		eventsCaptured atomic.Uint64
		eventsDropped  atomic.Uint64
	}
}

// New 创建 Sentry 客户端；DSN 为空时事件在本地处理后丢弃
func New(cfg *Config, opts ...Option) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge sentry config: %w", err)
	}
	if err := config.NewValidator().Validate(newCfg); err != nil {
		return nil, err
	}

	options := newCfg.toClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for key, value := range newCfg.Tags {
			scope.SetTag(key, value)
		}
	})

	return &Client{hub: hub, config: newCfg}, nil
}

// Enabled 是否配置了上报地址
func (c *Client) Enabled() bool {
	return c.config.DSN != ""
}

// CaptureError 上报错误，tags 只作用于本次事件
func (c *Client) CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	c.capture(tags, func(hub *sentry.Hub) *sentry.EventID {
		return hub.CaptureException(err)
	})
}

// CapturePanic 上报 recover 得到的值
func (c *Client) CapturePanic(recovered any, tags map[string]string) {
	if recovered == nil {
		return
	}
	c.capture(tags, func(hub *sentry.Hub) *sentry.EventID {
		return hub.Recover(recovered)
	})
}

func (c *Client) capture(tags map[string]string, fn func(hub *sentry.Hub) *sentry.EventID) {
	c.stats.eventsTotal.Add(1)
	if c.closed.Load() {
		c.stats.eventsDropped.Add(1)
		return
	}

	var eventID *sentry.EventID
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		eventID = fn(c.hub)
	})

	if eventID != nil && *eventID != "" {
		c.stats.eventsCaptured.Add(1)
	} else {
		c.stats.eventsDropped.Add(1)
	}
}

// Flush 等待所有事件上报完成
func (c *Client) Flush(timeout time.Duration) bool {
	return c.hub.Flush(timeout)
}

// Close 关闭客户端并等待未发送的事件
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	c.hub.Flush(c.config.ShutdownTimeout)
	return nil
}

// Stats 获取统计信息
func (c *Client) Stats() Stats {
	return Stats{
		EventsTotal:    c.stats.eventsTotal.Load(),
		EventsCaptured: c.stats.eventsCaptured.Load(),
		EventsDropped:  c.stats.eventsDropped.Load(),
	}
}
