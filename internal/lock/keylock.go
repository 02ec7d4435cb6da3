package lock

import (
	"context"
	"sync"
)

// KeyLock serialises work per alert identity (city+type+window) so two
// concurrent processing passes cannot create duplicate alerts for the same
// event. Acquire blocks until the key is free or ctx is done; the returned
// function releases the key.
type KeyLock interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MutexKeyLock is the in-process implementation, sufficient for a single
// instance. Multi-instance deployments use the Redis variant instead.
type MutexKeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewMutexKeyLock creates an in-process key lock.
func NewMutexKeyLock() *MutexKeyLock {
	return &MutexKeyLock{locks: make(map[string]*entry)}
}

// Acquire locks the given key. Entries are reference-counted and removed
// once the last holder releases, so the map does not grow with key history.
func (l *MutexKeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	release := func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
	return release, nil
}
