package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/eurodetective/pkg/llm"
)

func sampleTurn() []llm.Message {
	return []llm.Message{
		llm.UserMessage("What happened in Hungary?"),
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "news_events_search", Arguments: `{"query":"Hungary"}`}}},
		llm.ToolMessage("call_1", "[START OF CONTEXT EVENT]..."),
		llm.AssistantMessage("Here is what I found."),
	}
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, got)

	turn := sampleTurn()
	require.NoError(t, s.Append(ctx, "t1", turn[:2]...))
	require.NoError(t, s.Append(ctx, "t1", turn[2:]...))

	got, err = s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, turn, got)

	got[1].ToolCalls[0].Name = "mutated"
	again, _ := s.Load(ctx, "t1")
	assert.Equal(t, "news_events_search", again[1].ToolCalls[0].Name)

	other, _ := s.Load(ctx, "t2")
	assert.Empty(t, other)
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	s := NewRedisSessionStore(client, 24*time.Hour)

	turn := sampleTurn()
	require.NoError(t, s.Append(ctx, "thread_1", turn...))
	require.NoError(t, s.Append(ctx, "thread_1"))

	got, err := s.Load(ctx, "thread_1")
	require.NoError(t, err)
	assert.Equal(t, turn, got)
	assert.Equal(t, 24*time.Hour, mr.TTL("eurodetective:session:thread_1"))

	empty, err := s.Load(ctx, "thread_2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = mr.Lpush("eurodetective:session:thread_3", "not json")
	require.NoError(t, err)
	_, err = s.Load(ctx, "thread_3")
	assert.Error(t, err)
}
