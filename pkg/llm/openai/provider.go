// Package openai 提供基于 go-openai 的 LLM 供应商实现。
// 同时支持 OpenAI API 和兼容 OpenAI API 的服务（DeepSeek、SiliconFlow、Ollama 等）。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/eurodetective/pkg/llm/openai"
//
//	provider, err := llm.NewToolChatProvider("openai", map[string]any{
//	    "api_key":    os.Getenv("OPENAI_API_KEY"),
//	    "chat_model": "gpt-4.1",
//	})
//
//	msg, err := provider.ChatWithTools(ctx, messages, tools, func(s string) error {
//	    fmt.Print(s)
//	    return nil
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/eurodetective/pkg/llm"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// Name 供应商名称，兼容服务使用各自的名称。
	Name string `json:"name" mapstructure:"name"`

	// BaseURL API 基础地址，默认为 OpenAI 官方地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// RequireAPIKey 为 false 时允许空密钥（本地 Ollama 等）。
	RequireAPIKey bool `json:"require_api_key" mapstructure:"require_api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// EmbedDimensions 嵌入维度，0 表示使用模型默认值。
	EmbedDimensions int `json:"embed_dimensions" mapstructure:"embed_dimensions"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 控制生成文本的随机性，范围 0.0-2.0。默认 0，即确定性输出。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// TopP 核采样参数，0 表示不设置。
	TopP float64 `json:"top_p" mapstructure:"top_p"`

	// MaxTokens 最大生成 token 数，0 表示不设置。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// Stop 停止序列列表。
	Stop []string `json:"stop" mapstructure:"stop"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Name:          ProviderName,
		BaseURL:       "https://api.openai.com/v1",
		RequireAPIKey: true,
		EmbedModel:    "text-embedding-3-small",
		ChatModel:     "gpt-4.1",
		Timeout:       120 * time.Second,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *goopenai.Client
}

var (
	_ llm.Provider         = (*Provider)(nil)
	_ llm.ToolChatProvider = (*Provider)(nil)
)

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	return newFromMap(DefaultConfig(), configMap)
}

// NewCompatibleFactory 返回兼容 OpenAI API 的供应商工厂，defaults 提供默认地址和模型。
func NewCompatibleFactory(defaults Config) llm.ProviderFactory {
	return func(configMap map[string]any) (llm.Provider, error) {
		cfg := defaults
		if cfg.Timeout == 0 {
			cfg.Timeout = 120 * time.Second
		}
		return newFromMap(&cfg, configMap)
	}
}

func newFromMap(cfg *Config, configMap map[string]any) (*Provider, error) {
	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["embed_dimensions"].(int); ok && v > 0 {
		cfg.EmbedDimensions = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := configMap["top_p"].(float64); ok {
		cfg.TopP = v
	}
	if v, ok := configMap["max_tokens"].(int); ok {
		cfg.MaxTokens = v
	}
	if v, ok := configMap["stop"].([]string); ok {
		cfg.Stop = v
	}

	if cfg.RequireAPIKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api_key 是必需的", cfg.Name)
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.OrgID = cfg.Organization
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Provider{
		config: cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	if p.config.Name == "" {
		return ProviderName
	}
	return p.config.Name
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(p.config.EmbedModel),
		Dimensions: p.config.EmbedDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: 生成嵌入失败: %w", p.Name(), err)
	}

	// 按 index 放置确保顺序正确
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
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
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, fmt.Errorf("%s: 未返回向量嵌入", p.Name())
	}
	return embeddings[0], nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	msg, err := p.ChatWithTools(ctx, messages, nil, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.SystemMessage(systemPrompt))
	}
	messages = append(messages, llm.UserMessage(prompt))
	return p.Chat(ctx, messages)
}

// ChatWithTools 绑定工具进行对话，onDelta 非空时使用流式接口。
func (p *Provider) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, onDelta llm.DeltaFunc) (llm.Message, error) {
	req := p.buildRequest(messages, tools)

	if onDelta == nil {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return llm.Message{}, fmt.Errorf("%s: 对话请求失败: %w", p.Name(), err)
		}
		if len(resp.Choices) == 0 {
			return llm.Message{}, fmt.Errorf("%s: 未返回响应内容", p.Name())
		}
		return fromChatMessage(resp.Choices[0].Message), nil
	}

	req.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return llm.Message{}, fmt.Errorf("%s: 流式对话请求失败: %w", p.Name(), err)
	}
	defer stream.Close()

	var (
		content strings.Builder
		calls   = newToolCallAssembler()
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return llm.Message{}, fmt.Errorf("%s: 读取流式响应失败: %w", p.Name(), err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if err := onDelta(delta.Content); err != nil {
				return llm.Message{}, err
			}
		}
		for _, tc := range delta.ToolCalls {
			calls.add(tc)
		}
	}

	return llm.Message{
		Role:      llm.RoleAssistant,
		Content:   content.String(),
		ToolCalls: calls.result(),
	}, nil
}

func (p *Provider) buildRequest(messages []llm.Message, tools []llm.ToolDefinition) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    p.config.ChatModel,
		Messages: toChatMessages(messages),
		// go-openai 对零值 temperature 使用 omitempty，最小正数等价于 0
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
		Stop:        p.config.Stop,
	}
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func toChatMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		m := goopenai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out[i] = m
	}
	return out
}

func fromChatMessage(m goopenai.ChatCompletionMessage) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

// toolCallAssembler 按 index 拼接流式返回的工具调用片段。
type toolCallAssembler struct {
	byIndex map[int]*llm.ToolCall
	next    int
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{byIndex: make(map[int]*llm.ToolCall)}
}

func (a *toolCallAssembler) add(tc goopenai.ToolCall) {
	idx := a.next
	if tc.Index != nil {
		idx = *tc.Index
	} else if tc.ID == "" && a.next > 0 {
		// 无 index 且无 id 的片段属于上一个调用
		idx = a.next - 1
	}

	call, ok := a.byIndex[idx]
	if !ok {
		call = &llm.ToolCall{}
		a.byIndex[idx] = call
		if idx >= a.next {
			a.next = idx + 1
		}
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	if tc.Function.Name != "" {
		call.Name += tc.Function.Name
	}
	call.Arguments += tc.Function.Arguments
}

func (a *toolCallAssembler) result() []llm.ToolCall {
	if len(a.byIndex) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, *a.byIndex[i])
	}
	return out
}
