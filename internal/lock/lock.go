// lock.go - Per-user serialization of conversation work

package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the lock could not be taken before ctx ended
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work on one key (a user id) across requests
type Locker interface {
	// Acquire blocks until the key is held or ctx is done; the returned func releases it
	Acquire(ctx context.Context, key string) (func(), error)
}

// LocalLocker is an in-process keyed mutex for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
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
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.drop(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.drop(key, s)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have waiters or holders
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
