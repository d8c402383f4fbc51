package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/pkg/utils/errors"
	"github.com/kart-io/eurodetective/pkg/utils/response"
)

// RecoveryConfig Recovery 中间件配置。
type RecoveryConfig struct {
	// EnableStackTrace 在日志中记录堆栈。
	EnableStackTrace bool

	// OnPanic 发生 panic 时回调，可用于告警。
	OnPanic func(c *gin.Context, recovered any, stack []byte)
}

// Recovery 返回默认配置的 Recovery 中间件。
func Recovery() gin.HandlerFunc {
	return RecoveryWithConfig(RecoveryConfig{EnableStackTrace: true})
}

// RecoveryWithConfig 捕获 panic 并返回内部错误响应，panic 内容不会写入响应体。
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			if config.OnPanic != nil {
				config.OnPanic(c, r, stack)
			}

			fields := []any{
				"panic", fmt.Sprint(r),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c.Request.Context()),
			}
			if config.EnableStackTrace {
				fields = append(fields, "stack", string(stack))
			}
			logger.Errorw("HTTP handler panic", fields...)

			resp := response.Err(errors.ErrInternal).WithRequestID(GetRequestID(c.Request.Context()))
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
		}()
		c.Next()
	}
}
