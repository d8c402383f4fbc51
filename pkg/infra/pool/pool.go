package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config 池配置。
type Config struct {
	// Capacity 最大并发 goroutine 数，必须为正数。
	Capacity int
	// ExpiryDuration 空闲 goroutine 过期时间。
	ExpiryDuration time.Duration
	// PreAlloc 预分配 worker 队列。
	PreAlloc bool
	// Nonblocking 池满时 Submit 直接返回 ErrPoolOverload。
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下最多等待的任务数，0 表示不限制。
	MaxBlockingTasks int
	// PanicHandler 任务 panic 时回调，默认记录错误日志。
	PanicHandler func(any)
}

// DefaultConfig 返回默认配置。
func DefaultConfig(capacity int) *Config {
	return &Config{
		Capacity:       capacity,
		ExpiryDuration: 10 * time.Second,
	}
}

// Pool 有界 goroutine 池。
type Pool struct {
	name  string
	pool  *ants.Pool
	stats poolStats

	closeOnce sync.Once
	closed    atomic.Bool
}

type poolStats struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// Stats 池统计快照。
type Stats struct {
	SubmittedTasks int64
	CompletedTasks int64
	RejectedTasks  int64
	PanicRecovered int64
}

// New 创建池。
func New(name string, config *Config) (*Pool, error) {
	if config == nil || config.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidPoolConfig)
	}

	p := &Pool{name: name}

	panicHandler := config.PanicHandler
	if panicHandler == nil {
		panicHandler = func(r any) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}
	}

	ap, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r any) {
			p.stats.panics.Add(1)
			panicHandler(r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = ap

	logger.Debugw("Worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

// Name 返回池名称。
func (p *Pool) Name() string { return p.name }

// Cap 返回池容量。
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回运行中的 goroutine 数。
func (p *Pool) Running() int { return p.pool.Running() }

// Submit 提交任务。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		task()
		p.stats.completed.Add(1)
	})
	if err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}
	p.stats.submitted.Add(1)
	return nil
}

// ForEach 在池中对 [0, n) 的每个下标执行 fn，等待全部完成后返回。
// 结果由 fn 按下标写入调用方的切片，因此输出顺序与输入一致。
// ctx 取消后尚未开始的下标不再执行，返回 ctx.Err()。
// 提交失败时返回第一个提交错误，已提交的任务仍会等待完成。
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var (
		wg        sync.WaitGroup
		submitErr error
	)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}

		idx := i
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn(ctx, idx)
		})
		if err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}

	wg.Wait()
	if submitErr != nil {
		return submitErr
	}
	return ctx.Err()
}

// Release 关闭池，可重复调用。
func (p *Pool) Release() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.pool.Release()
		logger.Debugw("Worker pool released", "name", p.name)
	})
}

// Stats 返回统计快照。
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.stats.submitted.Load(),
		CompletedTasks: p.stats.completed.Load(),
		RejectedTasks:  p.stats.rejected.Load(),
		PanicRecovered: p.stats.panics.Load(),
	}
}
