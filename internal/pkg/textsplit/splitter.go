// Package textsplit 按 token 数将新闻正文切分为检索分块。
//
// 规则：
//   - 正文不超过 WholeLimit 个 token 时整篇作为一个分块；
//   - 否则依次按 "\n\n"、"\n"、". " 递归切分，每块 ChunkSize 个 token，相邻块重叠 ChunkOverlap 个 token；
//   - 每个分块去掉首尾的 "." 与空格；
//   - 不超过 MinTokens 个 token 的分块由 Keep 过滤。
package textsplit

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// 默认切分参数。
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultWholeLimit   = 1150
	DefaultMinTokens    = 75
)

// DefaultSeparators 递归切分使用的分隔符，按优先级排列。
var DefaultSeparators = []string{"\n\n", "\n", ". "}

// Counter 统计文本 token 数。
type Counter interface {
	Count(text string) int
}

// Config 切分配置。
type Config struct {
	ChunkSize    int      `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap int      `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	WholeLimit   int      `json:"whole-limit" mapstructure:"whole-limit"`
	MinTokens    int      `json:"min-tokens" mapstructure:"min-tokens"`
	Separators   []string `json:"-" mapstructure:"-"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		WholeLimit:   DefaultWholeLimit,
		MinTokens:    DefaultMinTokens,
		Separators:   DefaultSeparators,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	case c.WholeLimit < 0:
		return fmt.Errorf("whole limit must not be negative, got %d", c.WholeLimit)
	case c.MinTokens < 0:
		return fmt.Errorf("min tokens must not be negative, got %d", c.MinTokens)
	}
	return nil
}

// Splitter 新闻正文切分器，可并发使用。
type Splitter struct {
	cfg      Config
	counter  Counter
	splitter textsplitter.RecursiveCharacter
}

// New 创建切分器。
func New(cfg Config, counter Counter) (*Splitter, error) {
	if counter == nil {
		return nil, fmt.Errorf("textsplit: counter is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("textsplit: %w", err)
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultSeparators
	}

	return &Splitter{
		cfg:     cfg,
		counter: counter,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(cfg.Separators),
			textsplitter.WithLenFunc(counter.Count),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

// Split 切分正文并修剪每个分块，不做最小长度过滤。
// 分块下标即文章内的 chunk_id，因此过滤须在编号之后进行。
func (s *Splitter) Split(text string) ([]string, error) {
	var chunks []string
	if s.counter.Count(text) <= s.cfg.WholeLimit {
		chunks = []string{text}
	} else {
		var err error
		chunks, err = s.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("textsplit: %w", err)
		}
	}

	for i, c := range chunks {
		chunks[i] = strings.Trim(c, ". ")
	}
	return chunks, nil
}

// Keep 报告分块是否足够长，值得入库。
func (s *Splitter) Keep(chunk string) bool {
	return s.counter.Count(chunk) > s.cfg.MinTokens
}

// Config 返回切分配置。
func (s *Splitter) Config() Config {
	return s.cfg
}
