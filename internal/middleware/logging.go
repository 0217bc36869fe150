// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"time"

	"doc-rag-go/internal/metrics"
	"doc-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 是请求 id 使用的头部。
const RequestIDHeader = "X-Request-ID"

// RequestLogger 是一个 Gin 中间件，记录每个请求的状态码、耗时和请求 id。
// 不缓存响应体，SSE 和 WebSocket 可以照常逐段写出。
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), statusCode, latency)

		log.Infow("HTTP Request Log",
			"requestID", requestID,
			"statusCode", statusCode,
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"errors", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
