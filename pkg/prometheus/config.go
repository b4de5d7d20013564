package prometheus

// Config Prometheus 注册表配置
type Config struct {
	// Path 指标暴露路径，挂载在运维 HTTP 服务上
	Path string `mapstructure:"path" validate:"required,startswith=/"`

	// 是否注册默认 Go 采集器
	EnableGoCollector bool `mapstructure:"enable_go_collector"`

	// 是否注册默认进程采集器
	EnableProcessCollector bool `mapstructure:"enable_process_collector"`

	// 是否以 OpenMetrics 格式输出
	EnableOpenMetrics bool `mapstructure:"enable_open_metrics"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Path:                   "/metrics",
		EnableGoCollector:      true,
		EnableProcessCollector: true,
		EnableOpenMetrics:      true,
	}
}
