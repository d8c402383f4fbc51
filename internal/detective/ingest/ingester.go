package ingest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/eurodetective/internal/detective/metrics"
	"github.com/kart-io/eurodetective/internal/detective/store"
	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/internal/pkg/textsplit"
	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

// 默认参数。
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

// Embedder 批量文本向量化，llm.EmbeddingProvider 满足该接口。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex 向量集合写入，*store.MilvusIndex 满足该接口。
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, records []store.IndexRecord) (int64, error)
}

// Config 入库配置。
type Config struct {
	// Country 本次入库的国家，决定分块 ID 前缀和元数据中的 country。
	Country string `json:"country" mapstructure:"country"`
	// BatchSize 每批分块数。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`
	// Concurrency 并发处理的批次数。
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
}

// Chunk 一个待入库的分块。
type Chunk struct {
	ID         string
	Text       string
	ChunkIndex int
	Metadata   tool.ChunkMetadata
}

// Report 入库统计。
type Report struct {
	Articles   int
	Duplicates int
	// Skipped 国家与本次入库不一致而跳过的文章数。
	Skipped int
	// Dropped 因过短被丢弃的分块数。
	Dropped int
	Chunks  int
	Batches int
	Indexed int64
}

// Ingester 入库流水线。
type Ingester struct {
	splitter *textsplit.Splitter
	embedder Embedder
	index    VectorIndex
	chunks   store.ChunkWriter
	cfg      Config
	metrics  *metrics.Metrics
}

// New 创建入库流水线，m 可以为 nil。
func New(splitter *textsplit.Splitter, embedder Embedder, index VectorIndex, chunks store.ChunkWriter, cfg Config, m *metrics.Metrics) (*Ingester, error) {
	if splitter == nil || embedder == nil || index == nil || chunks == nil {
		return nil, fmt.Errorf("ingest: splitter, embedder, index and chunk store are required")
	}
	if !slices.Contains(tool.Countries, cfg.Country) {
		return nil, fmt.Errorf("ingest: unknown country %q", cfg.Country)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Ingester{splitter: splitter, embedder: embedder, index: index, chunks: chunks, cfg: cfg, metrics: m}, nil
}

// Run 读取 JSON Lines 文章并完成入库。
func (in *Ingester) Run(ctx context.Context, r io.Reader) (*Report, error) {
	start := time.Now()

	articles, dups, err := ReadArticles(r)
	if err != nil {
		return nil, errors.ErrAgentIngest.WithMessage("read articles").WithCause(err)
	}
	logger.Infow("Articles loaded", "country", in.cfg.Country, "articles", len(articles), "duplicates", dups)

	chunks, report, err := in.Prepare(articles)
	if err != nil {
		return nil, err
	}
	report.Duplicates = dups

	if err := in.index.EnsureCollection(ctx); err != nil {
		return nil, errors.ErrAgentIngest.WithMessage("ensure collection").WithCause(err)
	}

	indexed, batches, err := in.Index(ctx, chunks)
	report.Batches = batches
	report.Indexed = indexed
	if err != nil {
		return report, err
	}

	logger.Infow("Ingestion complete", "country", in.cfg.Country, "chunks", report.Chunks,
		"batches", report.Batches, "indexed", report.Indexed, "duration", time.Since(start).String())
	return report, nil
}

// Prepare 切分文章并过滤过短的分块。chunk 下标在过滤前确定。
func (in *Ingester) Prepare(articles []Article) ([]Chunk, *Report, error) {
	report := &Report{}
	var out []Chunk
	for i := range articles {
		a := &articles[i]
		if a.Country != "" && a.Country != in.cfg.Country {
			report.Skipped++
			logger.Warnw("Skipping article from another country", "article_id", a.ID, "country", a.Country)
			continue
		}
		report.Articles++

		texts, err := in.splitter.Split(a.Content)
		if err != nil {
			return nil, nil, errors.ErrAgentIngest.WithMessagef("split article %s", a.ID).WithCause(err)
		}
		md := tool.ChunkMetadata{
			ArticleID:     a.ID,
			Title:         a.Title,
			Country:       in.cfg.Country,
			Pillars:       a.Pillars(),
			ImpactScore:   a.ImpactScore,
			PublishedDate: a.PublishedDate,
		}
		for idx, text := range texts {
			if !in.splitter.Keep(text) {
				report.Dropped++
				continue
			}
			out = append(out, Chunk{Text: text, ChunkIndex: idx, Metadata: md})
		}
	}
	report.Chunks = len(out)
	return out, report, nil
}

// Index 分批写入分块全文与向量，返回写入向量数和批次数。
// 分块 ID 为 <国家前三字母>_B<批次号>C<批内序号>，批次号从 1 开始。
func (in *Ingester) Index(ctx context.Context, chunks []Chunk) (int64, int, error) {
	prefix := idPrefix(in.cfg.Country)
	batches := 0
	var indexed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.Concurrency)
	for startIdx := 0; startIdx < len(chunks); startIdx += in.cfg.BatchSize {
		end := min(startIdx+in.cfg.BatchSize, len(chunks))
		batches++
		num := batches
		batch := make([]Chunk, end-startIdx)
		copy(batch, chunks[startIdx:end])
		for n := range batch {
			batch[n].ID = fmt.Sprintf("%s_B%dC%d", prefix, num, n)
		}

		g.Go(func() error {
			n, err := in.indexBatch(gctx, num, batch)
			if err != nil {
				return errors.ErrAgentIngest.WithMessagef("batch %d", num).WithCause(err)
			}
			indexed.Add(n)
			in.metrics.AddChunksIndexed(int(n))
			logger.Infow("Batch indexed", "batch", num, "chunks", len(batch), "upserted", n)
			return nil
		})
	}

	err := g.Wait()
	return indexed.Load(), batches, err
}

// indexBatch 并行写入全文和计算向量，再写入向量集合。
func (in *Ingester) indexBatch(ctx context.Context, num int, batch []Chunk) (int64, error) {
	docs := make([]store.Chunk, len(batch))
	texts := make([]string, len(batch))
	for i, c := range batch {
		docs[i] = store.Chunk{ID: c.ID, Text: c.Text}
		texts[i] = c.Text
	}

	var vectors [][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := in.chunks.PutMany(gctx, docs); err != nil {
			return fmt.Errorf("write chunk texts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		v, err := in.embedder.Embed(gctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(v) != len(texts) {
			return fmt.Errorf("embed: got %d vectors for %d texts", len(v), len(texts))
		}
		vectors = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	records := make([]store.IndexRecord, len(batch))
	for i, c := range batch {
		records[i] = store.IndexRecord{ID: c.ID, Vector: vectors[i], ChunkIndex: c.ChunkIndex, Metadata: c.Metadata}
	}
	n, err := in.index.Upsert(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("upsert batch %d: %w", num, err)
	}
	return n, nil
}

func idPrefix(country string) string {
	r := []rune(strings.ToUpper(country))
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}
