// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"doc-rag-go/internal/model"

	"github.com/gin-gonic/gin"
)

// statusFor 把错误分类映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConfiguration), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConversion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrRemoteCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage 返回可以展示给调用方的错误信息，未分类的错误不暴露细节。
func publicMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "服务器内部错误"
	}
	return err.Error()
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data":    data,
	})
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, gin.H{
		"code":    status,
		"message": publicMessage(err),
		"data":    nil,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": message,
		"data":    nil,
	})
}
