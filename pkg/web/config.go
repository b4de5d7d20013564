package web

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Config Web 服务配置
type Config struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// SkipLogPaths 不记录访问日志的路径（健康检查、指标抓取）
	SkipLogPaths []string `mapstructure:"skip_log_paths"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		SkipLogPaths:    []string{"/healthz", "/metrics"},
	}
}
