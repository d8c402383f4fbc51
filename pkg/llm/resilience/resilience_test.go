package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/pkg/utils/httpclient"
)

var errTemporary = &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker("test", &BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute})
	b.now = func() time.Time { return now }

	fail := func() error { return errors.New("down") }
	_ = b.Do(fail)
	assert.Equal(t, StateClosed, b.State())
	_ = b.Do(fail)
	assert.Equal(t, StateOpen, b.State())

	err := b.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)

	// 超时后半开，探测成功即关闭
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("test", &BreakerConfig{MaxFailures: 1, OpenTimeout: time.Second})
	b.now = func() time.Time { return now }

	_ = b.Do(func() error { return errors.New("down") })
	now = now.Add(2 * time.Second)
	_ = b.Do(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, b.State())
}

func TestRetry(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errTemporary
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), cfg, func() error {
		calls++
		return &httpclient.StatusError{StatusCode: http.StatusBadRequest}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not be retried")

	calls = 0
	err = Retry(context.Background(), cfg, func() error {
		calls++
		return errTemporary
	})
	assert.ErrorIs(t, err, errTemporary)
	assert.Equal(t, 3, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(ErrBreakerOpen))
	assert.True(t, IsRetryable(fmt.Errorf("voyage: %w", errTemporary)))
	assert.True(t, IsRetryable(&httpclient.StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(errors.New("invalid input")))
}

type flakyEmbedder struct{ failures int }

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errTemporary
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *flakyEmbedder) Name() string { return "flaky" }

func TestWrapEmbedding(t *testing.T) {
	p := WrapEmbedding(&flakyEmbedder{failures: 1},
		&RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}, nil)

	v, err := p.EmbedSingle(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.Equal(t, "flaky", p.Name())
	assert.Equal(t, StateClosed, p.Breaker().State())
}
