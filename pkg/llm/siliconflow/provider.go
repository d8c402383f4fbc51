// Package siliconflow 注册 SiliconFlow 供应商（OpenAI 兼容接口）。
package siliconflow

import (
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/llm/openai"
)

// ProviderName 是 SiliconFlow 供应商的名称标识符
const ProviderName = "siliconflow"

// DefaultConfig 返回 SiliconFlow 默认配置。
func DefaultConfig() openai.Config {
	return openai.Config{
		Name:          ProviderName,
		BaseURL:       "https://api.siliconflow.cn/v1",
		RequireAPIKey: true,
		EmbedModel:    "BAAI/bge-m3",
		ChatModel:     "Qwen/Qwen2.5-7B-Instruct",
	}
}

func init() {
	llm.RegisterProvider(ProviderName, openai.NewCompatibleFactory(DefaultConfig()))
}
