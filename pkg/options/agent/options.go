// Package agentopts 定义对话代理的配置：对话窗口、检索参数与存储后端。
package agentopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

// 存储后端。
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendMongoDB = "mongodb"
)

// 检索之后的路由。
const (
	RouteAnswer  = "answer"
	RouteRewrite = "rewrite"
)

var _ options.IOptions = (*Options)(nil)

// Options 对话代理配置。
type Options struct {
	// MaxTokens 对话窗口 token 预算。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`
	// Route 检索之后的路由：answer 或 rewrite。
	Route string `json:"route" mapstructure:"route"`
	// MaxRewrites 单个回合内最多改写次数，仅 rewrite 路由生效。
	MaxRewrites int `json:"max-rewrites" mapstructure:"max-rewrites"`

	// TopK 向量检索返回的命中数。
	TopK int `json:"top-k" mapstructure:"top-k"`
	// FetchConcurrency 并发读取分块全文的 worker 数。
	FetchConcurrency int `json:"fetch-concurrency" mapstructure:"fetch-concurrency"`

	// ChunkStore 分块全文存储：mongodb、redis 或 memory。
	ChunkStore string `json:"chunk-store" mapstructure:"chunk-store"`
	// ChunkCacheTTL 进程内分块全文缓存时间，0 表示不缓存。
	ChunkCacheTTL time.Duration `json:"chunk-cache-ttl" mapstructure:"chunk-cache-ttl"`
	// SessionStore 会话历史存储：memory 或 redis。
	SessionStore string `json:"session-store" mapstructure:"session-store"`

	// Tokenizer 计算 token 使用的模型名，为空时使用对话模型。
	Tokenizer string `json:"tokenizer" mapstructure:"tokenizer"`
	// ThreadID 终端对话使用的会话 ID。
	ThreadID string `json:"thread-id" mapstructure:"thread-id"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		MaxTokens:        500000,
		Route:            RouteAnswer,
		MaxRewrites:      1,
		TopK:             250,
		FetchConcurrency: 30,
		ChunkStore:       BackendMongoDB,
		SessionStore:     BackendMemory,
		ThreadID:         "single_session_memory",
	}
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "agent."
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Token budget of the conversation window sent to the model.")
	fs.StringVar(&o.Route, p+"route", o.Route, "Route after retrieval: answer or rewrite.")
	fs.IntVar(&o.MaxRewrites, p+"max-rewrites", o.MaxRewrites, "Maximum question rewrites per turn (rewrite route only).")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of vector matches per search.")
	fs.IntVar(&o.FetchConcurrency, p+"fetch-concurrency", o.FetchConcurrency, "Workers fetching chunk texts concurrently.")
	fs.StringVar(&o.ChunkStore, p+"chunk-store", o.ChunkStore, "Chunk text backend: mongodb, redis or memory.")
	fs.DurationVar(&o.ChunkCacheTTL, p+"chunk-cache-ttl", o.ChunkCacheTTL, "In-process chunk text cache expiry, 0 disables the cache.")
	fs.StringVar(&o.SessionStore, p+"session-store", o.SessionStore, "Conversation history backend: memory or redis.")
	fs.StringVar(&o.Tokenizer, p+"tokenizer", o.Tokenizer, "Model name selecting the token encoding, defaults to the chat model.")
	fs.StringVar(&o.ThreadID, p+"thread-id", o.ThreadID, "Conversation id used by the terminal chat.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("agent.max-tokens must be positive"))
	}
	switch o.Route {
	case RouteAnswer, RouteRewrite:
	default:
		errs = append(errs, fmt.Errorf("agent.route must be answer or rewrite, got %q", o.Route))
	}
	if o.MaxRewrites < 0 {
		errs = append(errs, fmt.Errorf("agent.max-rewrites must not be negative"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("agent.top-k must be positive"))
	}
	if o.FetchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("agent.fetch-concurrency must be positive"))
	}
	switch o.ChunkStore {
	case BackendMongoDB, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("agent.chunk-store must be mongodb, redis or memory, got %q", o.ChunkStore))
	}
	if o.ChunkCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("agent.chunk-cache-ttl must not be negative"))
	}
	switch o.SessionStore {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("agent.session-store must be memory or redis, got %q", o.SessionStore))
	}
	if o.ThreadID == "" {
		errs = append(errs, fmt.Errorf("agent.thread-id cannot be empty"))
	}
	return errs
}

// UsesRedis 报告是否有存储后端依赖 Redis。
func (o *Options) UsesRedis() bool {
	return o.ChunkStore == BackendRedis || o.SessionStore == BackendRedis
}
