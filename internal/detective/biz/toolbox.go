package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/internal/detective/metrics"
	"github.com/kart-io/eurodetective/internal/detective/tool"
	"github.com/kart-io/eurodetective/pkg/llm"
)

// ToolName 模型可调用的工具名称，集合是封闭的。
type ToolName string

// ToolNewsSearch 新闻事件检索工具。
const ToolNewsSearch ToolName = tool.Name

// Retriever 新闻检索工具，*tool.NewsSearch 满足该接口。
type Retriever interface {
	Definition() llm.ToolDefinition
	Run(ctx context.Context, args string) string
}

// Toolbox 绑定到模型的工具集合。
type Toolbox struct {
	retriever Retriever
	metrics   *metrics.Metrics
}

// NewToolbox 创建工具集合。
func NewToolbox(retriever Retriever, m *metrics.Metrics) *Toolbox {
	return &Toolbox{retriever: retriever, metrics: m}
}

// Definitions 返回提供给模型的工具定义。
func (t *Toolbox) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{t.retriever.Definition()}
}

// Invoke 执行一次工具调用并返回对应的 tool 消息，未知工具返回错误文本。
func (t *Toolbox) Invoke(ctx context.Context, call llm.ToolCall) llm.Message {
	switch ToolName(call.Name) {
	case ToolNewsSearch:
		out := t.retriever.Run(ctx, call.Arguments)
		t.metrics.RecordToolCall(call.Name, !strings.HasPrefix(out, tool.ErrorPrefix))
		return llm.ToolMessage(call.ID, out)
	default:
		logger.Warnw("Model requested unknown tool", "tool", call.Name, "call_id", call.ID)
		t.metrics.RecordToolCall("unknown", false)
		return llm.ToolMessage(call.ID, fmt.Sprintf("Error: %s is not a valid tool, try one of [%s].", call.Name, ToolNewsSearch))
	}
}

