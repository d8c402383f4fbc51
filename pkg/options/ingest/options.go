// Package ingestopts 定义新闻入库命令的配置。
package ingestopts

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 入库配置。
type Options struct {
	// Input JSON Lines 文章文件，"-" 表示标准输入。
	Input string `json:"input" mapstructure:"input"`
	// Country 本次入库的国家。
	Country string `json:"country" mapstructure:"country"`

	BatchSize   int `json:"batch-size" mapstructure:"batch-size"`
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`

	// 切分参数，单位为 token。
	ChunkSize    int `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	WholeLimit   int `json:"whole-limit" mapstructure:"whole-limit"`
	MinTokens    int `json:"min-tokens" mapstructure:"min-tokens"`

	// Encoding 切分使用的 tiktoken 编码。
	Encoding string `json:"encoding" mapstructure:"encoding"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Input:        "-",
		BatchSize:    100,
		Concurrency:  4,
		ChunkSize:    1000,
		ChunkOverlap: 100,
		WholeLimit:   1150,
		MinTokens:    75,
		Encoding:     "cl100k_base",
	}
}

// AddFlags 注册命令行参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "ingest."
	fs.StringVar(&o.Input, p+"input", o.Input, "JSON Lines file of articles, - reads stdin.")
	fs.StringVar(&o.Country, p+"country", o.Country, "Country of the ingested articles, e.g. Italy.")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Chunks per embedding and upsert batch.")
	fs.IntVar(&o.Concurrency, p+"concurrency", o.Concurrency, "Batches processed concurrently.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Target chunk size in tokens.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks in tokens.")
	fs.IntVar(&o.WholeLimit, p+"whole-limit", o.WholeLimit, "Articles up to this many tokens are kept whole.")
	fs.IntVar(&o.MinTokens, p+"min-tokens", o.MinTokens, "Chunks with this many tokens or fewer are dropped.")
	fs.StringVar(&o.Encoding, p+"encoding", o.Encoding, "tiktoken encoding used to count tokens.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Input == "" {
		errs = append(errs, fmt.Errorf("ingest.input cannot be empty"))
	}
	if o.Country == "" {
		errs = append(errs, fmt.Errorf("ingest.country is required"))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.batch-size must be positive"))
	}
	if o.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("ingest.concurrency must be positive"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.Encoding == "" {
		errs = append(errs, fmt.Errorf("ingest.encoding cannot be empty"))
	}
	return errs
}
