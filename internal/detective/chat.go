package detectivesvc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/internal/detective/biz"
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

const (
	userPrompt      = "User: "
	assistantPrefix = "Assistant: "
)

var exitCommands = map[string]bool{"exit": true, "quit": true, "q": true}

// ChatSession 终端对话：逐行读取问题，以流式输出回答。
type ChatSession struct {
	streamer  *biz.Streamer
	resources *resources
}

// NewChatSession 连接外部依赖，创建使用 AgentOptions.ThreadID 的终端对话。
func (cfg *Config) NewChatSession(ctx context.Context) (*ChatSession, error) {
	r := newResources()
	if err := cfg.setup(ctx, r); err != nil {
		return nil, err
	}

	controller, err := cfg.newController(ctx, r)
	if err != nil {
		closeQuietly(r)
		return nil, err
	}
	return newChatSession(controller, cfg.AgentOptions.ThreadID, r), nil
}

func newChatSession(controller *biz.Controller, threadID string, r *resources) *ChatSession {
	return &ChatSession{streamer: biz.NewStreamer(controller, threadID), resources: r}
}

// Run 读取 in 直到 EOF、exit 命令或 ctx 结束。单个回合失败时输出提示并继续。
func (s *ChatSession) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if exitCommands[strings.ToLower(question)] {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		fmt.Fprint(out, assistantPrefix)
		for fragment, err := range s.streamer.Stream(ctx, []llm.Message{llm.UserMessage(question)}) {
			if err != nil {
				logger.Warnw("Chat turn failed", "thread_id", s.streamer.ThreadID(), "error", err.Error())
				fmt.Fprint(out, errors.UnableToProcessMessage)
				break
			}
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Close 关闭外部连接。
func (s *ChatSession) Close(ctx context.Context) error {
	if s.resources == nil {
		return nil
	}
	return s.resources.Close(ctx)
}
