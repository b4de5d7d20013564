// Package prometheus 进程级指标注册表
package prometheus

import (
	"fmt"
	"net/http"

	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client Prometheus 客户端，持有独立的 Registry
type Client struct {
	config   *Config
	registry *prometheus.Registry
}

// New 创建 Prometheus 客户端
func New(cfg *Config) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge prometheus config: %w", err)
	}
	if err := config.NewValidator().Validate(newCfg); err != nil {
		return nil, err
	}

	c := &Client{
		config:   newCfg,
		registry: prometheus.NewRegistry(),
	}

	// 注册默认采集器
	if newCfg.EnableGoCollector {
		c.registry.MustRegister(collectors.NewGoCollector())
	}
	if newCfg.EnableProcessCollector {
		c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return c, nil
}

// Registry 获取底层 Registry，业务指标注册到这里
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Path 指标暴露路径
func (c *Client) Path() string {
	return c.config.Path
}

// Handler 返回 HTTP Handler（用于集成到现有 HTTP 服务器）
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: c.config.EnableOpenMetrics,
		},
	)
}
