// Package ingestlock serialises ingestion of the same video across requests and processes.
package ingestlock

import (
	"context"
	"errors"
	"sync"
)

// ErrTimeout is returned when the lock could not be acquired before the wait deadline.
var ErrTimeout = errors.New("timed out waiting for ingest lock")

// Locker grants exclusive access per key. Release must be called exactly once after
// a successful Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	Close() error
}

// Noop grants every request immediately.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// Close is a no-op.
func (Noop) Close() error { return nil }

// Local serialises per key within this process.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Close is a no-op.
func (l *Local) Close() error { return nil }
