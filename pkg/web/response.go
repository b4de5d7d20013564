package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 通用错误码，业务错误码由各服务定义
const (
	CodeOK            = "OK"
	CodeInvalidParams = "INVALID_PARAMS"
	CodeInternal      = "INTERNAL"
)

// Response 统一响应结构
type Response struct {
	Code    string `json:"code"`    // 业务错误码
	Message string `json:"message"` // 提示信息
	Data    any    `json:"data"`    // 数据载体
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code string, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

// AbortWithError 中断并返回错误
func AbortWithError(c *gin.Context, httpStatus int, code string, message string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}
