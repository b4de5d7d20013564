package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics HTTP 服务指标
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New 创建 HTTP 指标（未注册）
func New(namespace string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}

// Register 注册到指定的注册器
func (m *HTTPMetrics) Register(registerer prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.RequestsTotal, m.RequestDuration} {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}
