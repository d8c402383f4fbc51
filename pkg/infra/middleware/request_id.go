// Package middleware 提供 gin 通用中间件：请求 ID、异常恢复、访问日志与链路追踪。
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/eurodetective/pkg/utils/id"
)

// HeaderXRequestID 请求 ID 头。
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestIDConfig RequestID 中间件配置。
type RequestIDConfig struct {
	// Header 读写请求 ID 的头，默认 X-Request-ID。
	Header string

	// Generator 请求未携带 ID 时的生成函数，默认 ULID。
	Generator func() string
}

// RequestID 返回默认配置的请求 ID 中间件。
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig 返回请求 ID 中间件。
// 请求 ID 写入响应头，并保存到 request context 中，可用 GetRequestID 取回。
func RequestIDWithConfig(config RequestIDConfig) gin.HandlerFunc {
	if config.Header == "" {
		config.Header = HeaderXRequestID
	}
	if config.Generator == nil {
		config.Generator = id.NewULID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(config.Header)
		if requestID == "" {
			requestID = config.Generator()
		}

		c.Header(config.Header, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// WithRequestID 将请求 ID 存入 context。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID 返回 context 中的请求 ID，不存在时返回空字符串。
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
