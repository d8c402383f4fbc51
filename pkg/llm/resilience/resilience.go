// Package resilience 为 LLM 调用提供重试与熔断。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier 指数退避倍数。
	Multiplier float64
	// Retryable 判断错误是否可重试，为空时使用 IsRetryable。
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    IsRetryable,
	}
}

// BreakerConfig 熔断器配置。
type BreakerConfig struct {
	// MaxFailures 连续失败达到该值时打开熔断器。
	MaxFailures int
	// OpenTimeout 熔断器打开后等待多久进入半开状态。
	OpenTimeout time.Duration
}

// DefaultBreakerConfig 返回默认熔断器配置。
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 60 * time.Second,
	}
}

// State 熔断器状态。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen 熔断器打开时拒绝调用。
var ErrBreakerOpen = errors.New("circuit breaker is open")

// Breaker 熔断器。半开状态只放行一个探测调用。
type Breaker struct {
	name   string
	config *BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker 创建熔断器。
func NewBreaker(name string, config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{name: name, config: config, now: time.Now}
}

// Do 通过熔断器执行 fn。
func (b *Breaker) Do(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.release(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenTimeout {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		logger.Infow("circuit breaker half-open", "breaker", b.name)
	case StateHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		if b.state != StateClosed {
			logger.Infow("circuit breaker closed", "breaker", b.name)
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.config.MaxFailures {
		if b.state != StateOpen {
			logger.Warnw("circuit breaker opened", "breaker", b.name, "failures", b.failures)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State 返回当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Retry 按指数退避重试 fn，直到成功、不可重试或达到最大次数。
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= config.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) reached: %w", config.MaxAttempts, err)
		}

		logger.Debugw("retrying llm call", "attempt", attempt, "delay", delay, "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}
