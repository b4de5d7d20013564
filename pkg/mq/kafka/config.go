package kafka

import "time"

// Config Kafka 配置
type Config struct {
	// Brokers Kafka broker 地址列表
	Brokers []string `mapstructure:"brokers"`

	// Producer 生产者配置
	Producer ProducerConfig `mapstructure:"producer"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// BatchSize 批量大小
	BatchSize int `mapstructure:"batch_size"`

	// BatchTimeout 批量最长等待时间
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`

	// MaxRetries 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`

	// RequiredAcks 确认模式
	// 0: NoResponse - 不等待确认
	// 1: Leader - 等待 Leader 确认
	// -1: All - 等待所有副本确认
	RequiredAcks int `mapstructure:"required_acks"`

	// Compression 压缩算法: none, gzip, snappy, lz4, zstd
	Compression string `mapstructure:"compression"`

	// WriteTimeout 写超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers: []string{"localhost:9092"},
		Producer: ProducerConfig{
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
			MaxRetries:   3,
			RequiredAcks: -1,
			Compression:  "snappy",
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	switch c.Producer.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return ErrInvalidConfig
	}
	return nil
}
