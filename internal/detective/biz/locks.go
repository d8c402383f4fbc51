package biz

import (
	"context"
	"sync"
)

// threadLocks 按会话 ID 分配的互斥锁，等待可被 context 取消。
// 没有持有者和等待者的锁会被回收。
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	ch   chan struct{}
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

func (l *threadLocks) lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.locks[id]
	if !ok {
		tl = &threadLock{ch: make(chan struct{}, 1)}
		l.locks[id] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-tl.ch
				l.release(id, tl)
			})
		}, nil
	case <-ctx.Done():
		l.release(id, tl)
		return nil, ctx.Err()
	}
}

func (l *threadLocks) release(id string, tl *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *threadLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
