// Package server 管理服务进程内可启停组件的生命周期。
package server

import "context"

// Lifecycle 可启停组件。
type Lifecycle interface {
	// Start 启动组件，启动完成后立即返回。
	Start(ctx context.Context) error
	// Stop 优雅停止组件。
	Stop(ctx context.Context) error
}

// Runnable 带名称的可启停组件。
type Runnable interface {
	Lifecycle
	// Name 返回组件名称，用于日志。
	Name() string
}
