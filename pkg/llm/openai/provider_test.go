package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kart-io/eurodetective/pkg/llm"
)

const testAPIKey = "test-key"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("expected BaseURL https://api.openai.com/v1, got %s", cfg.BaseURL)
	}
	if cfg.ChatModel != "gpt-4.1" {
		t.Errorf("expected ChatModel gpt-4.1, got %s", cfg.ChatModel)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("expected Timeout 120s, got %v", cfg.Timeout)
	}
	if cfg.Temperature != 0 {
		t.Errorf("expected Temperature 0, got %v", cfg.Temperature)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{
			name:   "valid config",
			config: map[string]any{"api_key": testAPIKey},
		},
		{
			name: "custom config",
			config: map[string]any{
				"api_key":      testAPIKey,
				"base_url":     "https://api.openai.com/v1",
				"embed_model":  "text-embedding-3-large",
				"chat_model":   "gpt-4o",
				"organization": "org-123",
			},
		},
		{
			name:      "missing api_key",
			config:    map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider.Name() != ProviderName {
				t.Errorf("expected provider name %s, got %s", ProviderName, provider.Name())
			}
		})
	}
}

func TestProviderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			t.Error("expected Authorization Bearer test-key")
		}

		w.Header().Set("Content-Type", "application/json")
		// 故意倒序返回，验证按 index 排列
		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"object":"embedding","embedding":[0.4,0.5],"index":1},
			{"object":"embedding","embedding":[0.1,0.2],"index":0}
		],"model":"text-embedding-3-small"}`)
	}))
	defer server.Close()

	provider := NewProviderWithConfig(&Config{
		BaseURL:    server.URL,
		APIKey:     testAPIKey,
		EmbedModel: "text-embedding-3-small",
		Timeout:    5 * time.Second,
	})

	embeddings, err := provider.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[0][0] != float32(0.1) || embeddings[1][0] != float32(0.4) {
		t.Errorf("embeddings out of order: %v", embeddings)
	}
}

func TestProviderChatWithToolsNonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		tools, _ := body["tools"].([]any)
		if len(tools) != 1 {
			t.Errorf("expected 1 tool, got %d", len(tools))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,
			"message":{"role":"assistant","content":"","tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"news_events_search","arguments":"{\"query\":\"corruption\"}"}}
			]},"finish_reason":"tool_calls"}]}`)
	}))
	defer server.Close()

	provider := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: testAPIKey, ChatModel: "gpt-4.1", Timeout: 5 * time.Second})

	msg, err := provider.ChatWithTools(context.Background(),
		[]llm.Message{llm.UserMessage("corruption in France?")},
		[]llm.ToolDefinition{{Name: "news_events_search", Description: "d", Parameters: map[string]any{"type": "object"}}},
		nil)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].Name != "news_events_search" || msg.ToolCalls[0].ID != "call_1" {
		t.Errorf("unexpected tool call: %+v", msg.ToolCalls[0])
	}
	if msg.ToolCalls[0].Arguments != `{"query":"corruption"}` {
		t.Errorf("unexpected arguments: %s", msg.ToolCalls[0].Arguments)
	}
}

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func TestProviderChatWithToolsStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		)
	}))
	defer server.Close()

	provider := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: testAPIKey, ChatModel: "gpt-4.1", Timeout: 5 * time.Second})

	var fragments []string
	msg, err := provider.ChatWithTools(context.Background(), []llm.Message{llm.UserMessage("hi")}, nil, func(s string) error {
		fragments = append(fragments, s)
		return nil
	})
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if len(fragments) != 2 || fragments[0] != "Hel" || fragments[1] != "lo" {
		t.Errorf("unexpected fragments: %v", fragments)
	}
	if msg.Content != "Hello" || msg.HasToolCalls() {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestProviderStreamingToolCallAssembly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"news_events_search","arguments":""}}]}}]}`,
			`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`,
			`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"courts\"}"}}]}}]}`,
		)
	}))
	defer server.Close()

	provider := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: testAPIKey, ChatModel: "gpt-4.1", Timeout: 5 * time.Second})

	msg, err := provider.ChatWithTools(context.Background(), []llm.Message{llm.UserMessage("courts")}, nil, func(string) error { return nil })
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	if got := msg.ToolCalls[0].Arguments; got != `{"query":"courts"}` {
		t.Errorf("unexpected assembled arguments: %s", got)
	}
}

func TestProviderStreamingDeltaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, `{"id":"1","choices":[{"index":0,"delta":{"content":"a"}}]}`)
	}))
	defer server.Close()

	provider := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: testAPIKey, Timeout: 5 * time.Second})
	stop := fmt.Errorf("stop")

	_, err := provider.ChatWithTools(context.Background(), []llm.Message{llm.UserMessage("hi")}, nil, func(string) error { return stop })
	if err != stop {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
}

func TestCompatibleFactory(t *testing.T) {
	factory := NewCompatibleFactory(Config{
		Name:      "local",
		BaseURL:   "http://localhost:11434/v1",
		ChatModel: "llama3",
	})

	p, err := factory(map[string]any{})
	if err != nil {
		t.Fatalf("expected no api key requirement, got %v", err)
	}
	if p.Name() != "local" {
		t.Errorf("expected name local, got %s", p.Name())
	}
}
