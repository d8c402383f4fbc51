package biz

import (
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

// DefaultMaxTokens 对话窗口的默认 token 预算。
const DefaultMaxTokens = 500000

// TokenCounter 计算单条消息的 token 数，*tokenizer.Counter 满足该接口。
type TokenCounter interface {
	CountMessage(m llm.Message) int
}

// Trimmer 将会话历史裁剪到 token 预算内。无状态，可并发使用。
type Trimmer struct {
	counter   TokenCounter
	maxTokens int
}

// NewTrimmer 创建裁剪器，maxTokens 不大于 0 时使用 DefaultMaxTokens。
func NewTrimmer(counter TokenCounter, maxTokens int) *Trimmer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Trimmer{counter: counter, maxTokens: maxTokens}
}

// MaxTokens 返回预算。
func (t *Trimmer) MaxTokens() int {
	return t.maxTokens
}

// Trim 返回预算内最长的消息后缀，并从其中第一条 user 消息开始。
// 开头的 system 消息始终保留并计入预算，消息要么完整保留要么丢弃。
// 仅当最近一条 user 消息单独也超出预算时返回 ErrAgentTrimmerOverflow；
// 否则后缀中没有 user 消息时只返回 system 消息（或空窗口）。
func (t *Trimmer) Trim(history []llm.Message) ([]llm.Message, error) {
	if len(history) == 0 {
		return []llm.Message{}, nil
	}

	var system []llm.Message
	rest := history
	budget := t.maxTokens
	if history[0].Role == llm.RoleSystem {
		system = history[:1]
		rest = history[1:]
		budget -= t.counter.CountMessage(history[0])
	}

	if last := lastUser(rest); last >= 0 && t.counter.CountMessage(rest[last]) > budget {
		return nil, errors.ErrAgentTrimmerOverflow.WithMessagef("latest user message does not fit in %d tokens", t.maxTokens)
	}

	start := len(rest)
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		n := t.counter.CountMessage(rest[i])
		if used+n > budget {
			break
		}
		used += n
		start = i
	}

	for start < len(rest) && rest[start].Role != llm.RoleUser {
		start++
	}

	out := make([]llm.Message, 0, len(system)+len(rest)-start)
	out = append(out, system...)
	return append(out, rest[start:]...), nil
}

func lastUser(msgs []llm.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return i
		}
	}
	return -1
}
