package service

import (
	"context"
	"sync"
)

// KeyLocker 按业务键互斥，用于关闭先查后写的竞态窗口
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalKeyLocker 进程内按键互斥锁
type LocalKeyLocker struct {
	mu    sync.Mutex
	locks map[string]*localKeyLock
}

type localKeyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalKeyLocker 创建进程内按键锁
func NewLocalKeyLocker() *LocalKeyLocker {
	return &LocalKeyLocker{locks: make(map[string]*localKeyLock)}
}

// Lock 获取键锁，ctx 取消时放弃等待
func (l *LocalKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localKeyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, entry, true) })
	}, nil
}

func (l *LocalKeyLocker) release(key string, entry *localKeyLock, held bool) {
	if held {
		<-entry.ch
	}
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func inviteAcceptLockKey(inviteeID string) string {
	return "invite:accept:" + inviteeID
}

func inviteStageLockKey(inviteeID string) string {
	return "invite:stage:" + inviteeID
}

const inviteConfigLockKey = "invite:config:active"
