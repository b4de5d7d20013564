package redis

import (
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/config"
)

// Config Redis 单机配置
type Config struct {
	Addr     string     `mapstructure:"addr"`     // host:port
	Password string     `mapstructure:"password"` // 密码
	DB       int        `mapstructure:"db"`       // 数据库索引（0-15）
	Pool     PoolConfig `mapstructure:"pool"`     // 连接池配置
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr: "localhost:6379",
		Pool: PoolConfig{
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxIdleTime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
			ReadTimeout:     3 * time.Second,
			WriteTimeout:    3 * time.Second,
			PoolTimeout:     4 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Addr == "" || c.DB < 0 || c.DB > 15 {
		return ErrInvalidConfig
	}
	return nil
}

// MergeConfig 合并配置
func MergeConfig(dst, src *Config) (*Config, error) {
	return config.MergeConfig(dst, src)
}
