package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 检索对话代理错误 (服务代码 30)
var (
	// ErrAgentValidation 检索参数或对话输入不合法。
	ErrAgentValidation = Register(New(MakeCode(ServiceAgent, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid agent input", "代理输入无效"))

	// ErrAgentMissingContext 回答阶段缺少问题或检索上下文。
	ErrAgentMissingContext = Register(New(MakeCode(ServiceAgent, CategoryRequest, 2), http.StatusUnprocessableEntity, codes.FailedPrecondition, "Missing question or context for answer generation.", "生成回答缺少问题或上下文"))

	// ErrAgentTrimmerOverflow 最近一条用户消息本身超出 token 预算。
	ErrAgentTrimmerOverflow = Register(New(MakeCode(ServiceAgent, CategoryRequest, 3), http.StatusRequestEntityTooLarge, codes.ResourceExhausted, "Message exceeds the conversation token budget", "消息超出对话 token 预算"))

	// ErrAgentSessionNotFound 会话不存在。
	ErrAgentSessionNotFound = Register(New(MakeCode(ServiceAgent, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Session not found", "会话不存在"))

	// ErrAgentSessionStore 会话存储读写失败。
	ErrAgentSessionStore = Register(New(MakeCode(ServiceAgent, CategoryCache, 1), http.StatusInternalServerError, codes.Internal, "Session store failure", "会话存储失败"))

	// ErrAgentGateway 外部依赖（Embedding、向量库、分块存储、模型）调用失败。
	ErrAgentGateway = Register(New(MakeCode(ServiceAgent, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Upstream gateway failure", "上游服务调用失败"))

	// ErrAgentIngest 文档入库失败。
	ErrAgentIngest = Register(New(MakeCode(ServiceAgent, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Ingestion failed", "文档入库失败"))
)

// UnableToProcessMessage 回合因致命错误中止时展示给用户的文本。
const UnableToProcessMessage = "Sorry, I was unable to process your message. Please try again."
