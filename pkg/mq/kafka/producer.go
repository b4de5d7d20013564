package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer 单 topic 生产者
type Producer struct {
	topic  string
	writer *kafka.Writer

	produced  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu       sync.Mutex
	lastSent time.Time
}

func newProducer(cfg *Config, topic string) *Producer {
	pc := cfg.Producer
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              pc.BatchSize,
			BatchTimeout:           pc.BatchTimeout,
			MaxAttempts:            pc.MaxRetries + 1,
			WriteTimeout:           pc.WriteTimeout,
			RequiredAcks:           kafka.RequiredAcks(pc.RequiredAcks),
			Compression:            parseCompression(pc.Compression),
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish 同步发布单条消息
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	p.produced.Add(1)

	km := kafka.Message{Key: msg.Key, Value: msg.Value}
	if len(msg.Headers) > 0 {
		km.Headers = make([]kafka.Header, 0, len(msg.Headers))
		for k, v := range msg.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}

	if err := p.writer.WriteMessages(ctx, km); err != nil {
		p.failed.Add(1)
		return err
	}

	p.succeeded.Add(1)
	p.mu.Lock()
	p.lastSent = time.Now()
	p.mu.Unlock()
	return nil
}

// Stats 返回统计信息
func (p *Producer) Stats() ProducerStats {
	p.mu.Lock()
	last := p.lastSent
	p.mu.Unlock()
	return ProducerStats{
		MessagesProduced:  p.produced.Load(),
		MessagesSucceeded: p.succeeded.Load(),
		MessagesFailed:    p.failed.Load(),
		LastMessageTime:   last,
	}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}

// parseCompression 解析压缩算法
func parseCompression(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
