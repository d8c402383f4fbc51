// Package id 生成会话与请求标识。
//
// 标识使用 ULID：按时间有序，26 个字符，可直接作为 Redis key 的一部分。
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewULID 生成新的 ULID 字符串。同一毫秒内生成的 ULID 单调递增。
func NewULID() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewThreadID 为未指定会话的请求生成会话 ID。
func NewThreadID() string {
	return "thread_" + NewULID()
}

// IsULID 报告 s 是否为合法的 ULID。
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
