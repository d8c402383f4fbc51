// Package biz 实现 EuroDetective 的对话控制：窗口裁剪、工具调度、回合状态机与流式输出。
package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/eurodetective/internal/detective/metrics"
	"github.com/kart-io/eurodetective/pkg/infra/tracing"
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

const tracerName = "eurodetective/biz"

// MissingContextMessage 回答阶段缺少问题或检索上下文时的固定回复。
const MissingContextMessage = "Missing question or context for answer generation."

// DefaultThreadID 终端对话默认使用的会话 ID。
const DefaultThreadID = "single_session_memory"

// SessionStore 会话历史存储。同一进程内写入后立即可读。
type SessionStore interface {
	// Load 返回会话历史，会话不存在时返回空切片。
	Load(ctx context.Context, threadID string) ([]llm.Message, error)
	// Append 追加消息。
	Append(ctx context.Context, threadID string, msgs ...llm.Message) error
}

// FragmentSink 接收流式输出的文本片段，返回错误时终止回合。
type FragmentSink func(fragment string) error

// Route 检索之后的路由。
type Route string

const (
	// RouteAnswer 检索后直接生成回答。
	RouteAnswer Route = "answer"
	// RouteRewrite 检索后改写问题并重新决策，次数受 MaxRewrites 限制。
	RouteRewrite Route = "rewrite"
)

// Config 控制器配置。
type Config struct {
	// MaxTokens 对话窗口 token 预算。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`
	// Route 检索之后的路由：answer 或 rewrite。
	Route Route `json:"route" mapstructure:"route"`
	// MaxRewrites 单个回合内最多改写次数。
	MaxRewrites int `json:"max-rewrites" mapstructure:"max-rewrites"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{MaxTokens: DefaultMaxTokens, Route: RouteAnswer, MaxRewrites: 1}
}

// TurnResult 一个回合的结果。
type TurnResult struct {
	ThreadID string
	// Answer 最后一条 assistant 消息的内容。
	Answer string
	// Outcome 见 metrics.Outcome* 常量。
	Outcome string
	// Messages 本回合追加到会话的全部消息，包括输入。
	Messages []llm.Message
	Rewrites int
}

// Option 配置 Controller。
type Option func(*Controller)

// WithMetrics 设置指标收集。
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller 对话回合状态机。同一会话的回合串行执行，不同会话可并发。
type Controller struct {
	chat     llm.ToolChatProvider
	tools    *Toolbox
	sessions SessionStore
	trimmer  *Trimmer
	cfg      Config
	metrics  *metrics.Metrics
	locks    *threadLocks
}

// NewController 创建控制器。
func NewController(chat llm.ToolChatProvider, tools *Toolbox, sessions SessionStore, counter TokenCounter, cfg Config, opts ...Option) (*Controller, error) {
	if chat == nil || tools == nil || sessions == nil || counter == nil {
		return nil, errors.ErrInvalidParam.WithMessage("controller: chat provider, toolbox, session store and token counter are required")
	}
	switch cfg.Route {
	case "":
		cfg.Route = RouteAnswer
	case RouteAnswer, RouteRewrite:
	default:
		return nil, errors.ErrInvalidParam.WithMessagef("controller: unknown route %q", cfg.Route)
	}
	if cfg.MaxRewrites < 0 {
		cfg.MaxRewrites = 0
	}

	c := &Controller{
		chat:     chat,
		tools:    tools,
		sessions: sessions,
		trimmer:  NewTrimmer(counter, cfg.MaxTokens),
		cfg:      cfg,
		locks:    newThreadLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// History 返回会话历史，会话不存在时返回 ErrAgentSessionNotFound。
func (c *Controller) History(ctx context.Context, threadID string) ([]llm.Message, error) {
	msgs, err := c.sessions.Load(ctx, threadID)
	if err != nil {
		return nil, errors.ErrAgentSessionStore.WithCause(err)
	}
	if len(msgs) == 0 {
		return nil, errors.ErrAgentSessionNotFound.WithMessagef("session %s not found", threadID)
	}
	return msgs, nil
}

// RunTurn 执行一个对话回合。sink 非空时以流式方式接收 DECIDE 与 ANSWER 阶段的文本片段。
// 致命错误（窗口溢出、生成失败、会话存储失败）会在追加最终回复之前中止回合并返回 errno 错误。
func (c *Controller) RunTurn(ctx context.Context, threadID string, input []llm.Message, sink FragmentSink) (res *TurnResult, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "turn", attribute.String("thread.id", threadID))
	defer span.End()

	start := time.Now()
	t := &turn{c: c, threadID: threadID, sink: sink, result: &TurnResult{ThreadID: threadID}}

	defer func() {
		if err != nil {
			t.result.Outcome = metrics.OutcomeFailed
			if ctx.Err() != nil {
				t.result.Outcome = metrics.OutcomeCanceled
			}
			tracing.RecordError(span, err)
			logger.Errorw("Turn aborted", "thread_id", threadID, "outcome", t.result.Outcome, "error", err.Error())
		} else {
			logger.Infow("Turn completed", "thread_id", threadID, "outcome", t.result.Outcome,
				"rewrites", t.result.Rewrites, "duration", time.Since(start).String())
		}
		span.SetAttributes(attribute.String("turn.outcome", t.result.Outcome))
		c.metrics.RecordTurn(t.result.Outcome)
	}()

	if err := validateInput(threadID, input); err != nil {
		return nil, err
	}

	unlock, err := c.locks.lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	history, err := c.sessions.Load(ctx, threadID)
	if err != nil {
		return nil, errors.ErrAgentSessionStore.WithCause(err)
	}
	t.history = history

	if err := t.run(ctx, input); err != nil {
		return nil, err
	}
	return t.result, nil
}

func validateInput(threadID string, input []llm.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return errors.ErrAgentValidation.WithMessage("thread id must not be empty")
	}
	if len(input) == 0 {
		return errors.ErrAgentValidation.WithMessage("turn input must contain at least one message")
	}
	for i, m := range input {
		if m.Role != llm.RoleUser {
			return errors.ErrAgentValidation.WithMessagef("message %d: role %q is not accepted as input", i, m.Role)
		}
	}
	return nil
}

type state int

const (
	stateDecide state = iota
	stateRetrieve
	stateAnswer
	stateRewrite
	stateDone
)

// turn 单个回合的可变状态，只在持有会话锁时使用。
type turn struct {
	c        *Controller
	threadID string
	history  []llm.Message
	sink     FragmentSink
	result   *TurnResult
	// pending 最近一次 DECIDE 请求的工具调用。
	pending []llm.ToolCall
}

func (t *turn) run(ctx context.Context, input []llm.Message) error {
	if err := t.append(ctx, input...); err != nil {
		return err
	}

	st := stateDecide
	for st != stateDone {
		var err error
		switch st {
		case stateDecide:
			st, err = t.decide(ctx)
		case stateRetrieve:
			st, err = t.retrieve(ctx)
		case stateAnswer:
			st, err = t.answer(ctx)
		case stateRewrite:
			st, err = t.rewrite(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// append 持久化消息后再追加到本地历史。
func (t *turn) append(ctx context.Context, msgs ...llm.Message) error {
	if err := t.c.sessions.Append(ctx, t.threadID, msgs...); err != nil {
		return errors.ErrAgentSessionStore.WithCause(err)
	}
	t.history = append(t.history, msgs...)
	t.result.Messages = append(t.result.Messages, msgs...)
	return nil
}

func (t *turn) trim() ([]llm.Message, error) {
	window, err := t.c.trimmer.Trim(t.history)
	if err != nil {
		t.c.metrics.RecordTrimmerOverflow()
		return nil, err
	}
	return window, nil
}

func (t *turn) decide(ctx context.Context) (state, error) {
	window, err := t.trim()
	if err != nil {
		return stateDone, err
	}

	msgs := make([]llm.Message, 0, len(window)+1)
	msgs = append(msgs, llm.SystemMessage(SystemPrompt))
	msgs = append(msgs, window...)

	reply, err := t.generate(ctx, metrics.StageDecide, msgs, t.c.tools.Definitions(), t.sink)
	if err != nil {
		return stateDone, err
	}
	reply.Role = llm.RoleAssistant
	if err := t.append(ctx, reply); err != nil {
		return stateDone, err
	}

	if !reply.HasToolCalls() {
		t.result.Answer = reply.Content
		t.result.Outcome = metrics.OutcomeAnswered
		return stateDone, nil
	}
	t.pending = reply.ToolCalls
	return stateRetrieve, nil
}

func (t *turn) retrieve(ctx context.Context) (state, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "retrieve", attribute.Int("tool.calls", len(t.pending)))
	defer span.End()

	results := make([]llm.Message, len(t.pending))
	for i, call := range t.pending {
		logger.Infow("Invoking tool", "thread_id", t.threadID, "tool", call.Name, "call_id", call.ID)
		results[i] = t.c.tools.Invoke(ctx, call)
	}
	t.pending = nil
	if err := t.append(ctx, results...); err != nil {
		return stateDone, err
	}

	if t.c.cfg.Route == RouteRewrite && t.result.Rewrites < t.c.cfg.MaxRewrites {
		return stateRewrite, nil
	}
	return stateAnswer, nil
}

func (t *turn) answer(ctx context.Context) (state, error) {
	window, err := t.trim()
	if err != nil {
		return stateDone, err
	}

	question := lastContent(window, llm.RoleUser)
	retrieved := lastContent(window, llm.RoleTool)
	if question == "" || retrieved == "" {
		logger.Warnw("Answer skipped", "thread_id", t.threadID,
			"has_question", question != "", "has_context", retrieved != "")
		if err := t.emit(MissingContextMessage); err != nil {
			return stateDone, err
		}
		if err := t.append(ctx, llm.AssistantMessage(MissingContextMessage)); err != nil {
			return stateDone, err
		}
		t.result.Answer = MissingContextMessage
		t.result.Outcome = metrics.OutcomeMissingContext
		return stateDone, nil
	}

	prompt := strings.NewReplacer("{question}", question, "{context}", retrieved).Replace(GeneratePrompt)
	reply, err := t.generate(ctx, metrics.StageAnswer, []llm.Message{llm.UserMessage(prompt)}, nil, t.sink)
	if err != nil {
		return stateDone, err
	}
	if err := t.append(ctx, llm.AssistantMessage(reply.Content)); err != nil {
		return stateDone, err
	}
	t.result.Answer = reply.Content
	t.result.Outcome = metrics.OutcomeRetrieved
	return stateDone, nil
}

func (t *turn) rewrite(ctx context.Context) (state, error) {
	window, err := t.trim()
	if err != nil {
		return stateDone, err
	}

	var question string
	for _, m := range window {
		if m.Role != llm.RoleSystem {
			question = m.Content
			break
		}
	}

	prompt := strings.ReplaceAll(RewritePrompt, "{question}", question)
	reply, err := t.generate(ctx, metrics.StageRewrite, []llm.Message{llm.UserMessage(prompt)}, nil, nil)
	if err != nil {
		return stateDone, err
	}
	if err := t.append(ctx, llm.UserMessage(reply.Content)); err != nil {
		return stateDone, err
	}
	t.result.Rewrites++
	logger.Infow("Question rewritten", "thread_id", t.threadID, "rewrites", t.result.Rewrites)
	return stateDecide, nil
}

// generate 调用生成模型，失败时返回 ErrAgentGateway；context 取消时原样返回取消原因。
func (t *turn) generate(ctx context.Context, stage string, msgs []llm.Message, tools []llm.ToolDefinition, sink FragmentSink) (llm.Message, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "llm."+stage,
		attribute.Int("llm.messages", len(msgs)), attribute.Int("llm.tools", len(tools)))
	defer span.End()

	start := time.Now()
	reply, err := t.c.chat.ChatWithTools(ctx, msgs, tools, llm.DeltaFunc(sink))
	t.c.metrics.ObserveLLMCall(stage, time.Since(start), err)
	if err != nil {
		tracing.RecordError(span, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return llm.Message{}, ctxErr
		}
		return llm.Message{}, errors.ErrAgentGateway.WithMessagef("%s generation failed", stage).WithCause(err)
	}
	recordUsage(span, reply)
	return reply, nil
}

func recordUsage(span trace.Span, reply llm.Message) {
	span.SetAttributes(
		attribute.Int("llm.tool_calls", len(reply.ToolCalls)),
		attribute.Int("llm.reply_bytes", len(reply.Content)),
	)
}

func (t *turn) emit(fragment string) error {
	if t.sink == nil {
		return nil
	}
	return t.sink(fragment)
}

func lastContent(msgs []llm.Message, role llm.Role) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i].Content
		}
	}
	return ""
}
