// Package voyage 提供 Voyage AI Embedding 供应商实现。
package voyage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/httpclient"
)

// ProviderName 是 Voyage 供应商的名称标识符
const ProviderName = "voyage"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config Voyage 供应商配置。
type Config struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 嵌入模型，默认 voyage-3.5。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// InputType 输入类型：document、query 或空。
	// 查询与入库使用相同的 document 类型，保证向量空间一致。
	InputType string `json:"input_type" mapstructure:"input_type"`

	// Dimensions 输出维度，需与向量库集合维度一致。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.voyageai.com/v1",
		EmbedModel: "voyage-3.5",
		InputType:  "document",
		Dimensions: 1024,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Voyage Embedding 供应商。
type Provider struct {
	config *Config
	client *httpclient.Client
}

var _ llm.EmbeddingProvider = (*Provider)(nil)

// NewProvider 从配置 map 创建 Voyage 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["input_type"].(string); ok {
		cfg.InputType = v
	}
	if v, ok := configMap["embed_dimensions"].(int); ok && v > 0 {
		cfg.Dimensions = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voyage: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type embeddingRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type,omitempty"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed 为多个文本生成向量嵌入，结果顺序与输入一致。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{
		Input:           texts,
		Model:           p.config.EmbedModel,
		InputType:       p.config.InputType,
		OutputDimension: p.config.Dimensions,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.config.APIKey}

	var resp embeddingResponse
	url := strings.TrimRight(p.config.BaseURL, "/") + "/embeddings"
	if err := p.client.PostJSON(ctx, url, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("voyage: 生成嵌入失败: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("voyage: 缺少第 %d 条文本的向量", i)
		}
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
