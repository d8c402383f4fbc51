// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding、Chat 与工具调用可以使用不同供应商的模型。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// DeltaFunc 接收流式生成的文本片段，返回错误时终止生成。
type DeltaFunc func(fragment string) error

// ToolChatProvider 支持工具调用与流式输出的 Chat 供应商。
type ToolChatProvider interface {
	ChatProvider

	// ChatWithTools 在绑定工具的情况下进行对话。
	// onDelta 非空时以流式方式生成，每个文本片段都会回调一次。
	// 返回的消息为完整的 assistant 消息，可能包含工具调用。
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, onDelta DeltaFunc) (Message, error)
}

// Message 表示对话中的一条消息。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasToolCalls 报告消息是否请求了工具调用。
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolCall 表示模型发起的一次工具调用。
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition 描述提供给模型的工具。
// Parameters 为 JSON Schema 对象。
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// SystemMessage 构造 system 消息。
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage 构造 user 消息。
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage 构造 assistant 消息。
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ToolMessage 构造工具结果消息。
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// ChatProviderFactory Chat 供应商工厂函数类型。
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	providers:          make(map[string]ProviderFactory),
	embeddingProviders: make(map[string]EmbeddingProviderFactory),
	chatProviders:      make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu                 sync.RWMutex
	providers          map[string]ProviderFactory
	embeddingProviders map[string]EmbeddingProviderFactory
	chatProviders      map[string]ChatProviderFactory
}

// RegisterProvider 注册完整供应商工厂。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// RegisterChatProvider 注册 Chat 供应商工厂。
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// NewProvider 根据名称创建完整供应商实例。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return factory(config)
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
// 优先查找专用 Embedding 工厂，其次查找完整供应商工厂。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	embedFactory, embedOK := registry.embeddingProviders[name]
	fullFactory, fullOK := registry.providers[name]
	registry.mu.RUnlock()

	switch {
	case embedOK:
		return embedFactory(config)
	case fullOK:
		return fullFactory(config)
	}
	return nil, fmt.Errorf("unknown embedding provider: %s", name)
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
// 优先查找专用 Chat 工厂，其次查找完整供应商工厂。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	chatFactory, chatOK := registry.chatProviders[name]
	fullFactory, fullOK := registry.providers[name]
	registry.mu.RUnlock()

	switch {
	case chatOK:
		return chatFactory(config)
	case fullOK:
		return fullFactory(config)
	}
	return nil, fmt.Errorf("unknown chat provider: %s", name)
}

// NewToolChatProvider 创建支持工具调用的 Chat 供应商实例。
// 供应商未实现 ToolChatProvider 时返回错误。
func NewToolChatProvider(name string, config map[string]any) (ToolChatProvider, error) {
	p, err := NewChatProvider(name, config)
	if err != nil {
		return nil, err
	}
	tp, ok := p.(ToolChatProvider)
	if !ok {
		return nil, fmt.Errorf("chat provider %s does not support tool calling", name)
	}
	return tp, nil
}

// ListProviders 列出所有已注册的供应商名称（已排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]struct{})
	for name := range registry.providers {
		seen[name] = struct{}{}
	}
	for name := range registry.embeddingProviders {
		seen[name] = struct{}{}
	}
	for name := range registry.chatProviders {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
