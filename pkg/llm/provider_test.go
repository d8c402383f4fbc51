package llm

import (
	"context"
	"testing"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "mock response", nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "mock generated text", nil
}

// mockToolProvider 额外实现工具调用。
type mockToolProvider struct {
	mockProvider
}

func (m *mockToolProvider) ChatWithTools(_ context.Context, _ []Message, _ []ToolDefinition, onDelta DeltaFunc) (Message, error) {
	if onDelta != nil {
		if err := onDelta("mock"); err != nil {
			return Message{}, err
		}
	}
	return AssistantMessage("mock"), nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if provider.Name() != "custom-name" {
		t.Errorf("expected name 'custom-name', got '%s'", provider.Name())
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider("unknown-provider", nil); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewEmbeddingProvider("unknown-provider", nil); err == nil {
		t.Error("expected error for unknown embedding provider")
	}
	if _, err := NewChatProvider("unknown-provider", nil); err == nil {
		t.Error("expected error for unknown chat provider")
	}
}

func TestNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("embed-only", func(config map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "embed-only"}, nil
	})
	RegisterProvider("full-embed", func(config map[string]any) (Provider, error) {
		return &mockProvider{name: "full-embed"}, nil
	})

	provider, err := NewEmbeddingProvider("embed-only", nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if provider.Name() != "embed-only" {
		t.Errorf("expected name 'embed-only', got '%s'", provider.Name())
	}

	// 回退到完整供应商
	provider2, err := NewEmbeddingProvider("full-embed", nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider fallback failed: %v", err)
	}
	if provider2.Name() != "full-embed" {
		t.Errorf("expected name 'full-embed', got '%s'", provider2.Name())
	}
}

func TestNewToolChatProvider(t *testing.T) {
	RegisterChatProvider("chat-plain", func(config map[string]any) (ChatProvider, error) {
		return &mockProvider{name: "chat-plain"}, nil
	})
	RegisterChatProvider("chat-tools", func(config map[string]any) (ChatProvider, error) {
		return &mockToolProvider{mockProvider{name: "chat-tools"}}, nil
	})

	if _, err := NewToolChatProvider("chat-plain", nil); err == nil {
		t.Error("expected error for provider without tool support")
	}

	p, err := NewToolChatProvider("chat-tools", nil)
	if err != nil {
		t.Fatalf("NewToolChatProvider failed: %v", err)
	}

	var got string
	msg, err := p.ChatWithTools(context.Background(), []Message{UserMessage("hi")}, nil, func(s string) error {
		got += s
		return nil
	})
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if got != "mock" || msg.Content != "mock" {
		t.Errorf("unexpected stream %q / message %q", got, msg.Content)
	}
}

func TestListProvidersSorted(t *testing.T) {
	RegisterChatProvider("zz-last", func(config map[string]any) (ChatProvider, error) {
		return &mockProvider{name: "zz-last"}, nil
	})
	RegisterEmbeddingProvider("aa-first", func(config map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "aa-first"}, nil
	})

	providers := ListProviders()
	if len(providers) < 2 {
		t.Fatalf("expected at least two providers, got %v", providers)
	}
	for i := 1; i < len(providers); i++ {
		if providers[i-1] >= providers[i] {
			t.Errorf("providers not sorted or duplicated: %v", providers)
		}
	}
}

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		msg  Message
		role Role
	}{
		{SystemMessage("s"), RoleSystem},
		{UserMessage("u"), RoleUser},
		{AssistantMessage("a"), RoleAssistant},
		{ToolMessage("call-1", "t"), RoleTool},
	}

	for _, tt := range tests {
		if tt.msg.Role != tt.role {
			t.Errorf("expected role '%s', got '%s'", tt.role, tt.msg.Role)
		}
	}

	if ToolMessage("call-1", "t").ToolCallID != "call-1" {
		t.Error("expected tool call id to be kept")
	}
	if (Message{ToolCalls: []ToolCall{{ID: "x"}}}).HasToolCalls() != true {
		t.Error("expected HasToolCalls to be true")
	}
}
