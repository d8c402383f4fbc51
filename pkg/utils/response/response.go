// Package response 定义统一的 HTTP API 响应结构。
package response

import (
	"net/http"
	"time"

	"github.com/kart-io/eurodetective/pkg/utils/errors"
)

// Response 统一响应结构，Code 为 0 表示成功。
type Response struct {
	Code      int    `json:"code"`
	HTTPCode  int    `json:"http_code,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Success 创建成功响应。
func Success(data any) *Response {
	return &Response{
		Code:      0,
		HTTPCode:  http.StatusOK,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Err 由任意错误创建错误响应，非 Errno 错误按内部错误处理。
// 底层错误不会出现在响应中。
func Err(err error) *Response {
	if err == nil {
		return Success(nil)
	}
	e := errors.FromError(err)
	return &Response{
		Code:      e.Code,
		HTTPCode:  e.HTTPStatus(),
		Message:   e.MessageEN,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithRequestID 设置请求 ID。
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess 报告响应是否成功。
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus 返回响应对应的 HTTP 状态码。
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
