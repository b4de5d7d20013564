package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/pkg/web/metrics"
)

// Metrics 接口监控中间件
func Metrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath() // 路由定义的路径，避免按实际参数膨胀标签
		if path == "" {
			path = "unknown"
		}
		latency := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		m.RequestsTotal.WithLabelValues(path, c.Request.Method, status).Inc()
		m.RequestDuration.WithLabelValues(path, c.Request.Method).Observe(latency)
	}
}
