package memory

import (
	"context"
	"sync"
)

// UsageLock serializes the usage fallback per tenant within one process.
type UsageLock struct {
	mu    sync.Mutex
	locks map[string]*tenantLock
}

type tenantLock struct {
	ch   chan struct{}
	refs int
}

// NewUsageLock creates a new in-process UsageLock.
func NewUsageLock() *UsageLock {
	return &UsageLock{locks: make(map[string]*tenantLock)}
}

// Acquire blocks until username's lock is free or ctx is done.
func (l *UsageLock) Acquire(ctx context.Context, username string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.locks[username]
	if !ok {
		tl = &tenantLock{ch: make(chan struct{}, 1)}
		l.locks[username] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(username, tl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-tl.ch
			l.unref(username, tl)
		})
	}, nil
}

// unref drops the entry once nobody holds or waits for it.
func (l *UsageLock) unref(username string, tl *tenantLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, username)
	}
}

// Len returns the number of tenants currently holding or waiting for a lock.
func (l *UsageLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
