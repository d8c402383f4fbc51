package resilience

import (
	"context"
	"errors"
	"net"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/httpclient"
)

// EmbeddingProvider 为 Embedding 供应商增加重试与熔断。
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	breaker  *Breaker
}

var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)

// WrapEmbedding 包装 Embedding 供应商，配置为空时使用默认值。
func WrapEmbedding(p llm.EmbeddingProvider, retry *RetryConfig, breaker *BreakerConfig) *EmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &EmbeddingProvider{
		provider: p,
		retry:    retry,
		breaker:  NewBreaker(p.Name(), breaker),
	}
}

// Embed 为多个文本生成向量嵌入。
func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Do(func() error {
			var err error
			out, err = r.provider.Embed(ctx, texts)
			return err
		})
	})
	return out, err
}

// EmbedSingle 为单个文本生成向量嵌入。
func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Do(func() error {
			var err error
			out, err = r.provider.EmbedSingle(ctx, text)
			return err
		})
	})
	return out, err
}

// Name 返回被包装供应商的名称。
func (r *EmbeddingProvider) Name() string {
	return r.provider.Name()
}

// Breaker 返回熔断器，用于观察状态。
func (r *EmbeddingProvider) Breaker() *Breaker {
	return r.breaker
}

// IsRetryable 判断错误是否可重试：网络错误、429、5xx。
// 上下文取消、熔断器打开以及 4xx 不重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBreakerOpen) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
