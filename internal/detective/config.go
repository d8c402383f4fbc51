// Package detectivesvc 组装 EuroDetective 的 HTTP 服务、终端对话与新闻入库。
package detectivesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/eurodetective/internal/detective/biz"
	"github.com/kart-io/eurodetective/internal/detective/handler"
	"github.com/kart-io/eurodetective/internal/detective/metrics"
	"github.com/kart-io/eurodetective/internal/detective/store"
	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/component/milvus"
	"github.com/kart-io/eurodetective/pkg/component/mongodb"
	"github.com/kart-io/eurodetective/pkg/component/redis"
	"github.com/kart-io/eurodetective/pkg/infra/app"
	"github.com/kart-io/eurodetective/pkg/infra/tracing"
	"github.com/kart-io/eurodetective/pkg/llm"
	_ "github.com/kart-io/eurodetective/pkg/llm/deepseek"
	_ "github.com/kart-io/eurodetective/pkg/llm/ollama"
	_ "github.com/kart-io/eurodetective/pkg/llm/openai"
	"github.com/kart-io/eurodetective/pkg/llm/resilience"
	_ "github.com/kart-io/eurodetective/pkg/llm/siliconflow"
	"github.com/kart-io/eurodetective/pkg/llm/tokenizer"
	_ "github.com/kart-io/eurodetective/pkg/llm/voyage"
	agentopts "github.com/kart-io/eurodetective/pkg/options/agent"
	ingestopts "github.com/kart-io/eurodetective/pkg/options/ingest"
	llmopts "github.com/kart-io/eurodetective/pkg/options/llm"
	logopts "github.com/kart-io/eurodetective/pkg/options/logger"
	milvusopts "github.com/kart-io/eurodetective/pkg/options/milvus"
	mongoopts "github.com/kart-io/eurodetective/pkg/options/mongodb"
	redisopts "github.com/kart-io/eurodetective/pkg/options/redis"
	httpopts "github.com/kart-io/eurodetective/pkg/options/server/http"
)

// Name 服务名称。
const Name = "eurodetective"

// Config 运行所需的全部配置，由命令行选项生成。
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracing.Options
	MilvusOptions    *milvusopts.Options
	MongoOptions     *mongoopts.Options
	RedisOptions     *redisopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	AgentOptions     *agentopts.Options
	IngestOptions    *ingestopts.Options
}

// chunkBackend 可读可写的分块全文存储。
type chunkBackend interface {
	tool.ChunkStore
	store.ChunkWriter
}

// resources 记录已打开的外部连接，按打开的相反顺序关闭。
type resources struct {
	metrics *metrics.Metrics
	checks  map[string]handler.Checker
	closers []namedCloser

	redis *redis.Client
}

type namedCloser struct {
	name string
	fn   func(ctx context.Context) error
}

func newResources() *resources {
	return &resources{metrics: metrics.New(), checks: map[string]handler.Checker{}}
}

func (r *resources) onClose(name string, fn func(ctx context.Context) error) {
	r.closers = append(r.closers, namedCloser{name: name, fn: fn})
}

// Close 关闭全部连接，单个失败不影响其余。
func (r *resources) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Warnw("Failed to close resource", "name", c.name, "error", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	r.closers = nil
	return utilerrors.NewAggregate(errs)
}

// setup 初始化日志与链路追踪，所有入口共用。
func (cfg *Config) setup(ctx context.Context, r *resources) error {
	if _, err := cfg.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, Name, app.GetVersion())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	r.onClose("tracing", tp.Shutdown)
	return nil
}

func (cfg *Config) openMilvus(ctx context.Context, r *resources) (*store.MilvusIndex, error) {
	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	r.onClose("milvus", client.Close)

	collection := cfg.MilvusOptions.Collection
	r.checks["milvus"] = func(ctx context.Context) error {
		_, err := client.Count(ctx, collection)
		return err
	}
	logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address, "collection", collection)

	return store.NewMilvusIndex(client, cfg.MilvusOptions)
}

func (cfg *Config) openRedis(ctx context.Context, r *resources) (*redis.Client, error) {
	if r.redis != nil {
		return r.redis, nil
	}
	client, err := redis.NewWithContext(ctx, cfg.RedisOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	r.onClose("redis", func(context.Context) error { return client.Close() })
	r.checks["redis"] = client.Ping
	r.redis = client
	logger.Infow("Redis client initialized", "redis", cfg.RedisOptions.String())
	return client, nil
}

func (cfg *Config) openChunkStore(ctx context.Context, r *resources) (chunkBackend, error) {
	switch cfg.AgentOptions.ChunkStore {
	case agentopts.BackendMongoDB:
		client, err := mongodb.NewWithContext(ctx, cfg.MongoOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		r.onClose("mongodb", client.Close)
		r.checks["mongodb"] = client.Ping
		logger.Infow("MongoDB chunk store initialized", "mongodb", cfg.MongoOptions.String())
		return store.NewMongoChunkStore(client.Collection(cfg.MongoOptions.ChunkCollection)), nil
	case agentopts.BackendRedis:
		client, err := cfg.openRedis(ctx, r)
		if err != nil {
			return nil, err
		}
		return store.NewRedisChunkStore(client, 0), nil
	default:
		logger.Warn("Using in-memory chunk store, chunk texts are lost on exit")
		return store.NewMemoryChunkStore(), nil
	}
}

func (cfg *Config) openSessionStore(ctx context.Context, r *resources) (biz.SessionStore, error) {
	if cfg.AgentOptions.SessionStore != agentopts.BackendRedis {
		return store.NewMemorySessionStore(), nil
	}
	client, err := cfg.openRedis(ctx, r)
	if err != nil {
		return nil, err
	}
	return store.NewRedisSessionStore(client, cfg.RedisOptions.SessionTTL), nil
}

func (cfg *Config) newEmbedder() (llm.EmbeddingProvider, error) {
	opts := cfg.EmbeddingOptions
	embedder, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model, "resilience", opts.Resilience)
	if opts.Resilience {
		return resilience.WrapEmbedding(embedder, nil, nil), nil
	}
	return embedder, nil
}

func (cfg *Config) agentConfig() biz.Config {
	return biz.Config{
		MaxTokens:   cfg.AgentOptions.MaxTokens,
		Route:       biz.Route(cfg.AgentOptions.Route),
		MaxRewrites: cfg.AgentOptions.MaxRewrites,
	}
}

// newController 组装检索工具与对话控制器。
func (cfg *Config) newController(ctx context.Context, r *resources) (*biz.Controller, error) {
	embedder, err := cfg.newEmbedder()
	if err != nil {
		return nil, err
	}

	chat, err := llm.NewToolChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", cfg.ChatOptions.Provider, "model", cfg.ChatOptions.Model)

	model := cfg.AgentOptions.Tokenizer
	if model == "" {
		model = cfg.ChatOptions.Model
	}
	counter, err := tokenizer.ForModel(model)
	if err != nil {
		return nil, err
	}

	index, err := cfg.openMilvus(ctx, r)
	if err != nil {
		return nil, err
	}

	var chunks tool.ChunkStore
	chunks, err = cfg.openChunkStore(ctx, r)
	if err != nil {
		return nil, err
	}
	if ttl := cfg.AgentOptions.ChunkCacheTTL; ttl > 0 {
		chunks = store.NewCachedChunkStore(chunks, ttl)
	}

	sessions, err := cfg.openSessionStore(ctx, r)
	if err != nil {
		return nil, err
	}

	search, err := tool.NewNewsSearch(embedder, index, chunks, tool.Config{
		TopK:             cfg.AgentOptions.TopK,
		FetchConcurrency: cfg.AgentOptions.FetchConcurrency,
	}, tool.WithMetrics(r.metrics))
	if err != nil {
		return nil, err
	}
	r.onClose("news-search", func(context.Context) error {
		search.Close()
		return nil
	})

	controller, err := biz.NewController(chat, biz.NewToolbox(search, r.metrics), sessions, counter, cfg.agentConfig(), biz.WithMetrics(r.metrics))
	if err != nil {
		return nil, err
	}
	logger.Infow("Conversation controller initialized",
		"encoding", counter.Encoding(),
		"max_tokens", cfg.AgentOptions.MaxTokens,
		"route", cfg.AgentOptions.Route,
		"chunk_store", cfg.AgentOptions.ChunkStore,
		"session_store", cfg.AgentOptions.SessionStore,
	)
	return controller, nil
}

// closeQuietly 在构建失败时释放已打开的连接。
func closeQuietly(r *resources) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.Close(ctx)
}
