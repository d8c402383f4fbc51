package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/pkg/llm"
)

func TestEncodingForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4.1", EncodingO200K},
		{"gpt-4o-mini", EncodingO200K},
		{"gpt-4", EncodingCL100K},
		{"deepseek-chat", EncodingCL100K},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodingForModel(tt.model), tt.model)
	}
}

// newCounter 需要 tiktoken 的 BPE 文件；无法加载时跳过。
func newCounter(t *testing.T) *Counter {
	t.Helper()
	c, err := New(EncodingCL100K)
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	return c
}

func TestCount(t *testing.T) {
	c := newCounter(t)

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("hello world"))
	assert.Greater(t, c.Count("Judicial independence in Poland"), 3)
}

func TestCountMessage(t *testing.T) {
	c := newCounter(t)

	user := llm.UserMessage("hello world")
	require.Equal(t, tokensPerMessage+c.Count("user")+2, c.CountMessage(user))

	withCall := llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "news_events_search", Arguments: `{"query":"courts"}`}},
	}
	assert.Greater(t, c.CountMessage(withCall), c.CountMessage(llm.AssistantMessage("")))

	assert.Equal(t, c.CountMessage(user)*2, c.CountMessages([]llm.Message{user, user}))
}
