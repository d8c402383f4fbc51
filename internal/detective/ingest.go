package detectivesvc

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/internal/detective/ingest"
	"github.com/kart-io/eurodetective/internal/detective/store"
	"github.com/kart-io/eurodetective/internal/pkg/textsplit"
	"github.com/kart-io/eurodetective/pkg/llm/tokenizer"
)

// IngestJob 一次新闻入库任务。
type IngestJob struct {
	ingester  *ingest.Ingester
	input     string
	resources *resources
}

// NewIngester 连接向量库与分块存储，创建入库任务。
func (cfg *Config) NewIngester(ctx context.Context) (*IngestJob, error) {
	r := newResources()
	if err := cfg.setup(ctx, r); err != nil {
		return nil, err
	}

	job, err := cfg.newIngestJob(ctx, r)
	if err != nil {
		closeQuietly(r)
		return nil, err
	}
	return job, nil
}

func (cfg *Config) newIngestJob(ctx context.Context, r *resources) (*IngestJob, error) {
	opts := cfg.IngestOptions

	counter, err := tokenizer.New(opts.Encoding)
	if err != nil {
		return nil, err
	}
	splitter, err := textsplit.New(textsplit.Config{
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
		WholeLimit:   opts.WholeLimit,
		MinTokens:    opts.MinTokens,
		Separators:   textsplit.DefaultSeparators,
	}, counter)
	if err != nil {
		return nil, err
	}

	embedder, err := cfg.newEmbedder()
	if err != nil {
		return nil, err
	}
	index, err := cfg.openMilvus(ctx, r)
	if err != nil {
		return nil, err
	}
	chunks, err := cfg.openChunkStore(ctx, r)
	if err != nil {
		return nil, err
	}
	if mongoChunks, ok := chunks.(*store.MongoChunkStore); ok {
		if err := mongoChunks.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("failed to create chunk index: %w", err)
		}
	}

	in, err := ingest.New(splitter, embedder, index, chunks, ingest.Config{
		Country:     opts.Country,
		BatchSize:   opts.BatchSize,
		Concurrency: opts.Concurrency,
	}, r.metrics)
	if err != nil {
		return nil, err
	}
	return &IngestJob{ingester: in, input: opts.Input, resources: r}, nil
}

// Run 读取输入文件并入库。
func (j *IngestJob) Run(ctx context.Context) (*ingest.Report, error) {
	var src io.Reader = os.Stdin
	if j.input != "-" {
		f, err := os.Open(j.input)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", j.input, err)
		}
		defer f.Close()
		src = f
	}

	logger.Infow("Ingesting articles", "input", j.input)
	report, err := j.ingester.Run(ctx, src)
	if err != nil {
		return nil, err
	}
	logger.Infow("Ingestion finished",
		"articles", report.Articles,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"dropped", report.Dropped,
		"chunks", report.Chunks,
		"batches", report.Batches,
		"indexed", report.Indexed,
	)
	return report, nil
}

// Close 关闭外部连接。
func (j *IngestJob) Close(ctx context.Context) error {
	return j.resources.Close(ctx)
}
