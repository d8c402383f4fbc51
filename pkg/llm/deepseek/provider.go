// Package deepseek 注册 DeepSeek 供应商。
// DeepSeek API 兼容 OpenAI 格式，复用 openai 包的实现。
package deepseek

import (
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/llm/openai"
)

// ProviderName 是 DeepSeek 供应商的名称标识符
const ProviderName = "deepseek"

// DefaultConfig 返回 DeepSeek 默认配置。DeepSeek 不提供 Embedding 模型。
func DefaultConfig() openai.Config {
	return openai.Config{
		Name:          ProviderName,
		BaseURL:       "https://api.deepseek.com/v1",
		RequireAPIKey: true,
		ChatModel:     "deepseek-chat",
	}
}

func init() {
	llm.RegisterProvider(ProviderName, openai.NewCompatibleFactory(DefaultConfig()))
}
