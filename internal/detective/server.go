package detectivesvc

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/internal/detective/handler"
	"github.com/kart-io/eurodetective/internal/detective/router"
	"github.com/kart-io/eurodetective/pkg/infra/server"
	transhttp "github.com/kart-io/eurodetective/pkg/infra/server/transport/http"
)

// Server EuroDetective HTTP 服务。
type Server struct {
	manager   *server.Manager
	resources *resources
}

// NewServer 连接外部依赖并注册路由，返回尚未启动的服务。
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	r := newResources()
	if err := cfg.setup(ctx, r); err != nil {
		return nil, err
	}
	logger.Info("Starting EuroDetective service")

	controller, err := cfg.newController(ctx, r)
	if err != nil {
		closeQuietly(r)
		return nil, err
	}

	httpServer := transhttp.NewServer(cfg.HTTPOptions, Name)
	router.Register(
		httpServer.Engine(),
		handler.NewChatHandler(controller),
		handler.NewHealthHandler(r.checks),
		r.metrics.Handler(),
		cfg.HTTPOptions.RequestTimeout,
	)

	logger.Infow("EuroDetective service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{
		manager:   server.NewManager(cfg.HTTPOptions.ShutdownTimeout, httpServer),
		resources: r,
	}, nil
}

// Run 启动服务，阻塞到 ctx 结束或收到退出信号，退出前关闭全部外部连接。
func (s *Server) Run(ctx context.Context) error {
	defer closeQuietly(s.resources)
	return s.manager.Run(ctx)
}
