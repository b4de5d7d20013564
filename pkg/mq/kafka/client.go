package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// Client Kafka 客户端，按 topic 缓存生产者
type Client struct {
	config *Config
	logger logger.Logger

	producers  map[string]*Producer
	producerMu sync.RWMutex

	closed atomic.Bool
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithLogger 设置日志
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 创建 Kafka 客户端，连接在首次发布时建立
func New(cfg *Config, opts ...ClientOption) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:    newCfg,
		logger:    logger.NewNoop(),
		producers: make(map[string]*Producer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Producer 获取或创建指定 topic 的生产者
func (c *Client) Producer(topic string) (*Producer, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	c.producerMu.RLock()
	p, ok := c.producers[topic]
	c.producerMu.RUnlock()
	if ok {
		return p, nil
	}

	c.producerMu.Lock()
	defer c.producerMu.Unlock()

	if p, ok = c.producers[topic]; ok {
		return p, nil
	}
	p = newProducer(c.config, topic)
	c.producers[topic] = p
	c.logger.Debug("producer created", "topic", topic)
	return p, nil
}

// Publish 发布消息到指定 topic
func (c *Client) Publish(ctx context.Context, topic string, msg *Message) error {
	p, err := c.Producer(topic)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// Close 关闭所有生产者
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.producerMu.Lock()
	defer c.producerMu.Unlock()

	var errs []error
	for topic, p := range c.producers {
		if err := p.Close(); err != nil {
			c.logger.Error("failed to close producer", "topic", topic, "error", err)
			errs = append(errs, err)
		}
	}
	c.producers = nil
	return errors.Join(errs...)
}
