// Package tokenizer 基于 tiktoken 统计文本与对话消息的 token 数。
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kart-io/eurodetective/pkg/llm"
)

const (
	// EncodingCL100K gpt-4 / gpt-3.5 / text-embedding-3 使用的编码。
	EncodingCL100K = "cl100k_base"
	// EncodingO200K gpt-4o / gpt-4.1 使用的编码。
	EncodingO200K = "o200k_base"

	// 每条消息的固定开销（<|start|>role ... <|end|>）。
	tokensPerMessage = 3
	// 消息中带 name 字段时的额外开销。
	tokensPerToolCall = 3
)

// Counter 统计 token 数，可安全并发使用。
type Counter struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// New 按编码名称创建 Counter。
func New(encoding string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: 加载编码 %s 失败: %w", encoding, err)
	}
	return &Counter{enc: enc, encoding: encoding}, nil
}

// ForModel 按模型名称选择编码创建 Counter，未知模型回退到 cl100k_base。
func ForModel(model string) (*Counter, error) {
	return New(EncodingForModel(model))
}

// EncodingForModel 返回模型对应的编码名称。
func EncodingForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"),
		strings.HasPrefix(m, "gpt-5"), strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return EncodingO200K
	default:
		return EncodingCL100K
	}
}

// Encoding 返回编码名称。
func (c *Counter) Encoding() string {
	return c.encoding
}

// Count 返回文本的 token 数。
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessage 返回单条对话消息的 token 数，包括角色与工具调用。
func (c *Counter) CountMessage(m llm.Message) int {
	n := tokensPerMessage + c.Count(string(m.Role)) + c.Count(m.Content)
	for _, tc := range m.ToolCalls {
		n += tokensPerToolCall + c.Count(tc.Name) + c.Count(tc.Arguments)
	}
	if m.ToolCallID != "" {
		n += c.Count(m.ToolCallID)
	}
	return n
}

// CountMessages 返回多条消息的 token 总数。
func (c *Counter) CountMessages(msgs []llm.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountMessage(m)
	}
	return total
}
