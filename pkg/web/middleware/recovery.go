package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

// Recovery 适配 pkg/logger 的异常恢复中间件
func Recovery(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			httpRequest, _ := httputil.DumpRequest(c.Request, false)

			// 连接已断开时无法再写响应
			if isBrokenPipe(rec) {
				l.Error("http broken pipe",
					"error", fmt.Sprint(rec),
					"request", string(httpRequest),
				)
				_ = c.Error(fmt.Errorf("%v", rec))
				c.Abort()
				return
			}

			l.Error("http recovery from panic",
				"error", fmt.Sprint(rec),
				"request", string(httpRequest),
				"stack", string(debug.Stack()),
			)
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

func isBrokenPipe(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
