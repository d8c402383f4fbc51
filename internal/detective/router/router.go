// Package router 注册 EuroDetective 的 HTTP 路由。
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/internal/detective/handler"
	"github.com/kart-io/eurodetective/pkg/infra/middleware"
)

// Register 注册对话、会话、健康检查与指标路由。对话接口受 timeout 限制。
func Register(engine *gin.Engine, chat *handler.ChatHandler, health *handler.HealthHandler, metrics http.Handler, timeout time.Duration) {
	engine.GET("/healthz", health.Health)
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := engine.Group("/v1")
	{
		v1.POST("/chat", middleware.Timeout(timeout), chat.Chat)
		v1.POST("/chat/stream", middleware.Timeout(timeout), chat.Stream)
		v1.GET("/sessions/:thread_id", chat.Session)
	}

	logger.Infow("HTTP routes registered", "routes", len(engine.Routes()))
}
