// Package http 提供基于 gin 的 HTTP 服务。
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/pkg/infra/middleware"
	"github.com/kart-io/eurodetective/pkg/infra/server"
	httpopts "github.com/kart-io/eurodetective/pkg/options/server/http"
	apierrors "github.com/kart-io/eurodetective/pkg/utils/errors"
	"github.com/kart-io/eurodetective/pkg/utils/response"
)

var _ server.Runnable = (*Server)(nil)

// Server gin HTTP 服务。
type Server struct {
	opts   *httpopts.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer 创建 HTTP 服务并安装基础中间件：Recovery、RequestID、Tracing、访问日志。
// extra 中的中间件按顺序追加在基础中间件之后，须在注册路由前传入。
func NewServer(opts *httpopts.Options, serviceName string, extra ...gin.HandlerFunc) *Server {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Tracing(serviceName),
		middleware.LoggerWithConfig(middleware.LoggerConfig{SkipPaths: opts.SkipLogPaths}),
	)
	engine.Use(extra...)

	engine.NoRoute(func(c *gin.Context) {
		resp := response.Err(apierrors.ErrRouteNotFound).WithRequestID(middleware.GetRequestID(c.Request.Context()))
		c.JSON(resp.HTTPStatus(), resp)
	})

	return &Server{opts: opts, engine: engine}
}

// Name 返回服务名称。
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine 返回 gin 引擎，用于注册路由。
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr 返回实际监听地址，未启动时返回配置地址。
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start 监听端口并在后台处理请求。监听失败时同步返回错误。
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("http server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "addr", ln.Addr().String(), "error", err)
		}
	}()

	logger.Infow("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Stop 优雅关闭，等待进行中的请求完成或 ctx 结束。
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
