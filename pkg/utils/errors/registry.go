package errors

import (
	"fmt"
	"sort"
	"sync"
)

var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register 注册 Errno，错误码重复时 panic。
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup 按错误码查找已注册的 Errno。
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}

// RegisteredCodes 返回所有已注册的错误码（升序）。
func RegisteredCodes() []int {
	registryMu.RLock()
	defer registryMu.RUnlock()

	codes := make([]int, 0, len(errnoRegistry))
	for code := range errnoRegistry {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
