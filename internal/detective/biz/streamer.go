package biz

import (
	"context"
	"iter"
	"strings"

	"github.com/kart-io/eurodetective/pkg/llm"
)

// Streamer 将一个会话的回合输出转换为文本片段序列。
// 每次 Stream 对应一个回合，只能遍历一次；同一个 Streamer 不支持并发流。
type Streamer struct {
	controller *Controller
	threadID   string
	last       string
}

// NewStreamer 创建绑定到指定会话的 Streamer。
func NewStreamer(c *Controller, threadID string) *Streamer {
	return &Streamer{controller: c, threadID: threadID}
}

// ThreadID 返回会话 ID。
func (s *Streamer) ThreadID() string {
	return s.threadID
}

// Stream 执行一个回合并逐个产出 assistant 文本片段。提前结束遍历会取消回合；
// 回合失败时最后产出 ("", err)。
func (s *Streamer) Stream(ctx context.Context, input []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var acc strings.Builder
		s.last = ""
		stopped := false

		sink := func(fragment string) error {
			if fragment == "" {
				return nil
			}
			acc.WriteString(fragment)
			s.last = acc.String()
			if !yield(fragment, nil) {
				stopped = true
				cancel()
				return context.Canceled
			}
			return nil
		}

		_, err := s.controller.RunTurn(ctx, s.threadID, input, sink)
		if err != nil && !stopped {
			yield("", err)
		}
	}
}

// LastResponse 返回最近一次 Stream 已产出片段的拼接结果。
func (s *Streamer) LastResponse() string {
	return s.last
}
