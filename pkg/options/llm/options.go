// Package llmopts 定义 Embedding 与 Chat 供应商的配置。
package llmopts

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/eurodetective/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// apiKeyEnvs 未配置 API 密钥时按供应商读取的环境变量。
var apiKeyEnvs = map[string]string{
	"openai":      "OPENAI_API_KEY",
	"voyage":      "VOYAGE_API_KEY",
	"deepseek":    "DEEPSEEK_API_KEY",
	"siliconflow": "SILICONFLOW_API_KEY",
}

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（voyage, openai, deepseek, siliconflow, ollama）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Dimensions 输出向量维度（仅 Embedding）。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// InputType Voyage 的 input_type（document 或 query）。
	InputType string `json:"input-type" mapstructure:"input-type"`

	// Temperature 采样温度（仅 Chat）。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Resilience 是否启用重试与熔断包装。
	Resilience bool `json:"resilience" mapstructure:"resilience"`
}

// NewEmbeddingOptions 创建默认 Embedding 配置：voyage-3.5，1024 维。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "voyage",
		Model:      "voyage-3.5",
		Dimensions: 1024,
		InputType:  "document",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
	}
}

// NewChatOptions 创建默认 Chat 配置：gpt-4.1，温度 0。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		Model:      "gpt-4.1",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap 转换为供应商工厂使用的配置 map，未设置的键不写入。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
		"temperature": o.Temperature,
	}
	set := func(key, val string) {
		if val != "" {
			m[key] = val
		}
	}
	set("base_url", o.BaseURL)
	set("api_key", o.APIKey)
	set("embed_model", o.Model)
	set("chat_model", o.Model)
	set("organization", o.Organization)
	set("input_type", o.InputType)
	if o.Dimensions > 0 {
		m["embed_dimensions"] = o.Dimensions
	}
	return m
}

// AddFlags 注册命令行参数，prefixes 通常为 "embedding" 或 "chat"。
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (voyage, openai, deepseek, siliconflow, ollama).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL, empty uses the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key, falls back to the provider's *_API_KEY env var.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Output vector dimension (embedding only).")
	fs.StringVar(&o.InputType, p+"input-type", o.InputType, "Voyage input type (document or query).")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature (chat only).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum HTTP retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (OpenAI, optional).")
	fs.BoolVar(&o.Resilience, p+"resilience", o.Resilience, "Wrap the provider with retry and circuit breaking.")
}

// Complete 从环境变量补全 API 密钥。
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		if env, ok := apiKeyEnvs[o.Provider]; ok {
			o.APIKey = os.Getenv(env)
		}
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}

// Validate 校验配置。
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2]"))
	}
	if o.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("dimensions must not be negative"))
	}
	return errs
}
