package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ErrorReporter 错误上报（例如 sentry）
type ErrorReporter interface {
	CaptureError(err error, tags map[string]string)
	CapturePanic(recovered any, tags map[string]string)
}

// Report 上报 5xx 响应上挂载的错误与 panic
//
// panic 上报后重新抛出，由外层 Recovery 负责写响应。
func Report(r ErrorReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				r.CapturePanic(rec, requestTags(c, http.StatusInternalServerError))
				panic(rec)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusInternalServerError {
			return
		}
		for _, e := range c.Errors {
			r.CaptureError(e.Err, requestTags(c, status))
		}
	}
}

func requestTags(c *gin.Context, status int) map[string]string {
	path := c.FullPath()
	if path == "" {
		path = "unknown"
	}
	return map[string]string{
		"http.method": c.Request.Method,
		"http.route":  path,
		"http.status": strconv.Itoa(status),
	}
}
