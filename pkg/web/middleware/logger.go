package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// Logger 适配 pkg/logger 的 Gin 日志中间件，skipPaths 只记录 debug 日志
func Logger(l logger.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []interface{}{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"ip", c.ClientIP(),
			"latency", latency.String(),
		}

		ctx := c.Request.Context()
		switch {
		case len(c.Errors) > 0:
			for _, e := range c.Errors.Errors() {
				l.ErrorContext(ctx, e, fields...)
			}
		case status >= 500:
			l.ErrorContext(ctx, "http request", fields...)
		case status >= 400:
			l.WarnContext(ctx, "http request", fields...)
		default:
			if _, ok := skip[path]; ok {
				l.DebugContext(ctx, "http request", fields...)
				return
			}
			l.InfoContext(ctx, "http request", fields...)
		}
	}
}
