package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindAndValidate 绑定请求参数并进行校验，失败时已写入 400 响应
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			Error(c, http.StatusBadRequest, CodeInvalidParams, errs.Error())
			return false
		}
		Error(c, http.StatusBadRequest, CodeInvalidParams, "invalid request parameters: "+err.Error())
		return false
	}
	return true
}

// GetQuery 获取查询参数，带默认值
func GetQuery(c *gin.Context, key, defaultValue string) string {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	return val
}
