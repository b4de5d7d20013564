package postgres

import (
	"fmt"
	"time"

	"github.com/lk2023060901/shardbazaar/pkg/config"
)

// DBConfig 单个数据库实例配置
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"` // disable, require, verify-ca, verify-full
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxConns          int32         `mapstructure:"max_conns"`           // 最大连接数
	MinConns          int32         `mapstructure:"min_conns"`           // 最小连接数
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`   // 连接最大生命周期
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`  // 连接最大空闲时间
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"` // 健康检查周期
}

// Config PostgreSQL 配置
type Config struct {
	// DSN 非空时优先使用，忽略 Standalone
	DSN        string     `mapstructure:"dsn"`
	Standalone DBConfig   `mapstructure:"standalone"`
	Pool       PoolConfig `mapstructure:"pool"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Standalone: DBConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "shardbazaar",
			SSLMode: "disable",
		},
		Pool: PoolConfig{
			MaxConns:          25,
			MinConns:          2,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
		},
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   5 * time.Second,
	}
}

// MergeConfig 合并配置
func MergeConfig(dst, src *Config) (*Config, error) {
	return config.MergeConfig(dst, src)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	if c.DSN == "" {
		if c.Standalone.Host == "" {
			return fmt.Errorf("%w: host is empty", ErrInvalidConfig)
		}
		if c.Standalone.Port <= 0 || c.Standalone.Port > 65535 {
			return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Standalone.Port)
		}
		if c.Standalone.User == "" {
			return fmt.Errorf("%w: user is empty", ErrInvalidConfig)
		}
		if c.Standalone.DBName == "" {
			return fmt.Errorf("%w: db_name is empty", ErrInvalidConfig)
		}
	}

	if c.Pool.MaxConns <= 0 {
		return fmt.Errorf("%w: max_conns must be positive", ErrInvalidConfig)
	}
	if c.Pool.MinConns < 0 || c.Pool.MinConns > c.Pool.MaxConns {
		return fmt.Errorf("%w: min_conns must be within [0, max_conns]", ErrInvalidConfig)
	}

	return nil
}

// ConnString 构建连接字符串
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	db := c.Standalone
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		db.Host, db.Port, db.User, db.Password, db.DBName, db.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}
