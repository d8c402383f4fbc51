// Package ollama 注册本地 Ollama 供应商。
// 使用 Ollama 的 OpenAI 兼容端点（/v1），无需 API 密钥。
package ollama

import (
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/llm/openai"
)

// ProviderName 是 Ollama 供应商的名称标识符
const ProviderName = "ollama"

// DefaultConfig 返回 Ollama 默认配置。
func DefaultConfig() openai.Config {
	return openai.Config{
		Name:       ProviderName,
		BaseURL:    "http://localhost:11434/v1",
		EmbedModel: "nomic-embed-text",
		ChatModel:  "llama3.1",
	}
}

func init() {
	llm.RegisterProvider(ProviderName, openai.NewCompatibleFactory(DefaultConfig()))
}
