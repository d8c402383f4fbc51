// Package pool 基于 ants 提供有界 goroutine 池。
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭。
	ErrPoolClosed = errors.New("池已关闭")

	// ErrPoolOverload 非阻塞模式下池已满。
	ErrPoolOverload = errors.New("池已满")

	// ErrInvalidPoolConfig 无效的池配置。
	ErrInvalidPoolConfig = errors.New("无效的池配置")
)
