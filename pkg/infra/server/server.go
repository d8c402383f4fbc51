package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// DefaultShutdownTimeout 默认优雅停止超时。
const DefaultShutdownTimeout = 30 * time.Second

// Manager 按注册顺序启动组件，按相反顺序停止。
type Manager struct {
	mu              sync.Mutex
	servers         []Runnable
	started         []Runnable
	shutdownTimeout time.Duration
}

// NewManager 创建 Manager。shutdownTimeout 非正数时使用 DefaultShutdownTimeout。
func NewManager(shutdownTimeout time.Duration, servers ...Runnable) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Manager{servers: servers, shutdownTimeout: shutdownTimeout}
}

// AddServer 追加组件，须在 Start 之前调用。
func (m *Manager) AddServer(s Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, s)
}

// Start 依次启动组件。任一组件启动失败时停止已启动的组件并返回错误。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}

	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
			_ = m.stopLocked(stopCtx)
			cancel()
			return fmt.Errorf("failed to start server %s: %w", s.Name(), err)
		}
		m.started = append(m.started, s)
		logger.Infow("Server started", "name", s.Name())
	}
	return nil
}

// Stop 按启动的相反顺序停止组件，汇总全部错误。
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", s.Name())
	}
	m.started = nil
	return utilerrors.NewAggregate(errs)
}

// Run 启动全部组件，阻塞到 ctx 结束或收到 SIGINT/SIGTERM，然后优雅停止。
func (m *Manager) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down servers")

	stopCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	return m.Stop(stopCtx)
}
