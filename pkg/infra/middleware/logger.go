package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
)

// LoggerConfig 访问日志中间件配置。
type LoggerConfig struct {
	// SkipPaths 不记录日志的路径。
	SkipPaths []string
}

// Logger 返回访问日志中间件，跳过健康检查与指标路径。
func Logger() gin.HandlerFunc {
	return LoggerWithConfig(LoggerConfig{SkipPaths: []string{"/healthz", "/metrics"}})
}

// LoggerWithConfig 使用 kart-io/logger 记录结构化访问日志。
func LoggerWithConfig(config LoggerConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := make([]any, 0, 16)
		fields = append(fields,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"remote_addr", c.ClientIP(),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		)
		if rid := GetRequestID(c.Request.Context()); rid != "" {
			fields = append(fields, "request_id", rid)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Errorw("HTTP Request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warnw("HTTP Request", fields...)
		default:
			logger.Infow("HTTP Request", fields...)
		}
	}
}
