package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/eurodetective/internal/detective/metrics"
	"github.com/kart-io/eurodetective/pkg/infra/pool"
	"github.com/kart-io/eurodetective/pkg/infra/tracing"
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

// Name 工具名称。
const Name = "news_events_search"

// 默认参数。
const (
	DefaultTopK             = 250
	DefaultFetchConcurrency = 30
)

// ErrorPrefix Run 失败时返回文本的前缀。
const ErrorPrefix = "Error searching news events: "

const tracerName = "eurodetective/tool"

// Config 检索工具配置。
type Config struct {
	// TopK 向量检索返回的命中数。
	TopK int `json:"top-k" mapstructure:"top-k"`
	// FetchConcurrency 并发读取分块全文的 worker 数。
	FetchConcurrency int `json:"fetch-concurrency" mapstructure:"fetch-concurrency"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{TopK: DefaultTopK, FetchConcurrency: DefaultFetchConcurrency}
}

// Option 配置 NewsSearch。
type Option func(*NewsSearch)

// WithMetrics 设置指标收集。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *NewsSearch) { s.metrics = m }
}

// NewsSearch 新闻事件检索工具，可并发使用。
type NewsSearch struct {
	embedder Embedder
	searcher VectorSearcher
	chunks   ChunkStore
	pool     *pool.Pool
	topK     int
	metrics  *metrics.Metrics
}

// NewNewsSearch 创建检索工具。使用完毕后调用 Close 释放 worker 池。
func NewNewsSearch(embedder Embedder, searcher VectorSearcher, chunks ChunkStore, cfg Config, opts ...Option) (*NewsSearch, error) {
	if embedder == nil || searcher == nil || chunks == nil {
		return nil, fmt.Errorf("news search: embedder, searcher and chunk store are required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}

	p, err := pool.New("chunk-fetch", pool.DefaultConfig(cfg.FetchConcurrency))
	if err != nil {
		return nil, fmt.Errorf("news search: %w", err)
	}

	s := &NewsSearch{
		embedder: embedder,
		searcher: searcher,
		chunks:   chunks,
		pool:     p,
		topK:     cfg.TopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.metrics.RegisterPool(p); err != nil {
		p.Release()
		return nil, fmt.Errorf("news search: %w", err)
	}
	return s, nil
}

// Close 释放 worker 池。
func (s *NewsSearch) Close() {
	s.pool.Release()
}

// Definition 返回提供给模型的工具定义。
func (s *NewsSearch) Definition() llm.ToolDefinition {
	return Definition()
}

// Run 解析工具参数并执行检索。Run 不返回错误，任何失败都以
// "Error searching news events: <原因>" 文本返回，交由模型向用户解释。
func (s *NewsSearch) Run(ctx context.Context, args string) string {
	q, err := ParseQuery(args)
	if err != nil {
		err = errors.ErrAgentValidation.WithMessage(err.Error())
	} else {
		var out string
		out, err = s.Search(ctx, q)
		if err == nil {
			return out
		}
	}

	logger.Warnw("News search failed", "error", err.Error())
	return ErrorPrefix + errorDetail(err)
}

// Search 执行检索并返回上下文块，块顺序与向量检索结果一致。
// 分块存储未命中或读取失败时该块正文为空，不影响其他块。
func (s *NewsSearch) Search(ctx context.Context, q Query) (string, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "news_events_search")
	defer span.End()

	start := time.Now()

	if err := q.Validate(); err != nil {
		verr := errors.ErrAgentValidation.WithMessage(err.Error())
		tracing.RecordError(span, verr)
		return "", verr
	}

	filter := BuildFilter(q)
	span.SetAttributes(
		attribute.Int("retrieval.top_k", s.topK),
		attribute.Int("retrieval.filter_fields", len(filter)),
	)
	logger.Infow("Performing similarity search", "query", q.Query, "filter", fmt.Sprint(filter))

	vector, err := s.embedder.EmbedSingle(ctx, q.Query)
	if err != nil {
		gerr := errors.ErrAgentGateway.WithMessage("embedding failed").WithCause(err)
		tracing.RecordError(span, gerr)
		return "", gerr
	}

	matches, err := s.searcher.Query(ctx, vector, filter, s.topK)
	if err != nil {
		gerr := errors.ErrAgentGateway.WithMessage("vector search failed").WithCause(err)
		tracing.RecordError(span, gerr)
		return "", gerr
	}
	span.SetAttributes(attribute.Int("retrieval.matches", len(matches)))

	bodies, err := s.fetchBodies(ctx, matches)
	if err != nil {
		gerr := errors.ErrAgentGateway.WithMessage("chunk fetch interrupted").WithCause(err)
		tracing.RecordError(span, gerr)
		return "", gerr
	}

	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = FormatBlock(m.Metadata.Title, m.Metadata.Country, bodies[i])
	}

	s.metrics.ObserveRetrieval(time.Since(start), len(matches))
	return strings.Join(blocks, "\n\n"), nil
}

// fetchBodies 在 worker 池中并发读取分块全文，结果按下标写回。
func (s *NewsSearch) fetchBodies(ctx context.Context, matches []RetrievedChunk) ([]string, error) {
	bodies := make([]string, len(matches))
	err := s.pool.ForEach(ctx, len(matches), func(ctx context.Context, i int) {
		id := matches[i].ChunkID
		text, ok, err := s.chunks.Get(ctx, id)
		switch {
		case err != nil:
			s.metrics.RecordChunkMiss()
			logger.Warnw("Chunk fetch failed", "chunk_id", id, "error", err.Error())
		case !ok:
			s.metrics.RecordChunkMiss()
			logger.Warnw("Chunk not found", "chunk_id", id)
		default:
			bodies[i] = text
		}
	})
	return bodies, err
}

// FormatBlock 将一条检索结果格式化为上下文块。
func FormatBlock(title, country, body string) string {
	var b strings.Builder
	b.Grow(len(title) + len(country) + len(body) + 96)
	b.WriteString("[START OF CONTEXT EVENT]\n")
	b.WriteString("Title: ")
	b.WriteString(title)
	b.WriteString("\nCountry: ")
	b.WriteString(country)
	b.WriteString("\n\nRetrieved information:\n")
	b.WriteString(body)
	b.WriteString("\n[END OF CONTEXT EVENT]")
	return b.String()
}

// errorDetail 返回适合展示给模型的错误描述，不含内部错误码。
func errorDetail(err error) string {
	var e *errors.Errno
	if !errors.As(err, &e) {
		return err.Error()
	}
	if cause := e.Unwrap(); cause != nil {
		return e.MessageEN + ": " + cause.Error()
	}
	return e.MessageEN
}
