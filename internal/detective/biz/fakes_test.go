package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/llm"
)

// lenCounter 以内容字节数作为 token 数。
type lenCounter struct{}

func (lenCounter) CountMessage(m llm.Message) int { return len(m.Content) }

type step struct {
	fragments []string
	toolCalls []llm.ToolCall
	err       error
}

type chatCall struct {
	msgs  []llm.Message
	tools []llm.ToolDefinition
}

type fakeChat struct {
	mu     sync.Mutex
	script []step
	// fallback 脚本用完后的回复。
	fallback *step
	delay    time.Duration
	calls    []chatCall

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Chat(ctx context.Context, msgs []llm.Message) (string, error) {
	m, err := f.ChatWithTools(ctx, msgs, nil, nil)
	return m.Content, err
}

func (f *fakeChat) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return f.Chat(ctx, []llm.Message{llm.SystemMessage(systemPrompt), llm.UserMessage(prompt)})
}

func (f *fakeChat) ChatWithTools(ctx context.Context, msgs []llm.Message, tools []llm.ToolDefinition, onDelta llm.DeltaFunc) (llm.Message, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, chatCall{msgs: append([]llm.Message(nil), msgs...), tools: tools})
	var s step
	switch {
	case i < len(f.script):
		s = f.script[i]
	case f.fallback != nil:
		s = *f.fallback
	default:
		f.mu.Unlock()
		return llm.Message{}, errors.New("unexpected model call")
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if s.err != nil {
		return llm.Message{}, s.err
	}

	var content strings.Builder
	for _, frag := range s.fragments {
		if onDelta != nil {
			if err := onDelta(frag); err != nil {
				return llm.Message{}, err
			}
		}
		content.WriteString(frag)
	}
	return llm.Message{Role: llm.RoleAssistant, Content: content.String(), ToolCalls: s.toolCalls}, nil
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRetriever struct {
	mu   sync.Mutex
	out  string
	args []string
}

func (f *fakeRetriever) Definition() llm.ToolDefinition { return tool.Definition() }

func (f *fakeRetriever) Run(_ context.Context, args string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, args)
	return f.out
}

type fakeSessions struct {
	mu        sync.Mutex
	data      map[string][]llm.Message
	loadErr   error
	appendErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: map[string][]llm.Message{}}
}

func (f *fakeSessions) Load(_ context.Context, id string) ([]llm.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]llm.Message(nil), f.data[id]...), nil
}

func (f *fakeSessions) Append(_ context.Context, id string, msgs ...llm.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.data[id] = append(f.data[id], msgs...)
	return nil
}

func (f *fakeSessions) get(id string) []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Message(nil), f.data[id]...)
}

func searchCall(id, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: tool.Name, Arguments: args}
}
