// Package handler 提供 EuroDetective 的 HTTP 处理函数。
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/eurodetective/internal/detective/biz"
	"github.com/kart-io/eurodetective/pkg/infra/middleware"
	"github.com/kart-io/eurodetective/pkg/llm"
	"github.com/kart-io/eurodetective/pkg/utils/errors"
	"github.com/kart-io/eurodetective/pkg/utils/id"
	"github.com/kart-io/eurodetective/pkg/utils/response"
)

// Agent 对话回合执行者，*biz.Controller 满足该接口。
type Agent interface {
	RunTurn(ctx context.Context, threadID string, input []llm.Message, sink biz.FragmentSink) (*biz.TurnResult, error)
	History(ctx context.Context, threadID string) ([]llm.Message, error)
}

// ChatRequest 对话请求。thread_id 为空时创建新会话。
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message" binding:"required"`
}

// ChatResponse 对话结果。
type ChatResponse struct {
	ThreadID string `json:"thread_id"`
	Answer   string `json:"answer"`
}

// SessionResponse 会话历史。
type SessionResponse struct {
	ThreadID string        `json:"thread_id"`
	Messages []llm.Message `json:"messages"`
}

// ChatHandler 对话接口。
type ChatHandler struct {
	agent Agent
}

// NewChatHandler 创建对话接口。
func NewChatHandler(agent Agent) *ChatHandler {
	return &ChatHandler{agent: agent}
}

func (h *ChatHandler) bind(c *gin.Context) (string, []llm.Message, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, errors.ErrAgentValidation.WithMessage(err.Error()), nil)
		return "", nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeErr(c, errors.ErrAgentValidation.WithMessage("message must not be empty"), nil)
		return "", nil, false
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = id.NewThreadID()
	}
	return threadID, []llm.Message{llm.UserMessage(req.Message)}, true
}

// Chat 执行一个完整回合并返回回答。
func (h *ChatHandler) Chat(c *gin.Context) {
	threadID, input, ok := h.bind(c)
	if !ok {
		return
	}

	res, err := h.agent.RunTurn(c.Request.Context(), threadID, input, nil)
	if err != nil {
		writeErr(c, err, &ChatResponse{ThreadID: threadID, Answer: errors.UnableToProcessMessage})
		return
	}
	writeOK(c, &ChatResponse{ThreadID: res.ThreadID, Answer: res.Answer})
}

// Stream 以 text/event-stream 输出回答：每个片段一个 message 事件，
// 结束时发送 done（完整回答）或 error。
func (h *ChatHandler) Stream(c *gin.Context) {
	threadID, input, ok := h.bind(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Thread-ID", threadID)
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	var full strings.Builder
	sink := func(fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		full.WriteString(fragment)
		c.SSEvent("message", gin.H{"content": fragment})
		c.Writer.Flush()
		return nil
	}

	if _, err := h.agent.RunTurn(ctx, threadID, input, biz.FragmentSink(sink)); err != nil {
		e := errors.FromError(err)
		logger.Warnw("Streamed turn failed", "thread_id", threadID, "code", e.Code, "error", err.Error())
		c.SSEvent("error", gin.H{"code": e.Code, "message": errors.UnableToProcessMessage})
		c.Writer.Flush()
		return
	}

	c.SSEvent("done", ChatResponse{ThreadID: threadID, Answer: full.String()})
	c.Writer.Flush()
}

// Session 返回会话历史。
func (h *ChatHandler) Session(c *gin.Context) {
	threadID := c.Param("thread_id")
	msgs, err := h.agent.History(c.Request.Context(), threadID)
	if err != nil {
		writeErr(c, err, nil)
		return
	}
	writeOK(c, &SessionResponse{ThreadID: threadID, Messages: msgs})
}

func writeOK(c *gin.Context, data any) {
	resp := response.Success(data).WithRequestID(middleware.GetRequestID(c.Request.Context()))
	c.JSON(resp.HTTPStatus(), resp)
}

func writeErr(c *gin.Context, err error, data any) {
	resp := response.Err(err).WithRequestID(middleware.GetRequestID(c.Request.Context()))
	resp.Data = data
	c.JSON(resp.HTTPStatus(), resp)
}
