package booking

import (
	"context"
	"sort"
	"sync"
)

// KeyedMutex is an in-process Locker with one mutex per key. Keys are taken in sorted
// order so two callers locking overlapping key sets cannot deadlock.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyLock{}}
}

func (m *KeyedMutex) Lock(ctx context.Context, keys []string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := m.lockOne(ctx, k); err != nil {
			for i := len(held) - 1; i >= 0; i-- {
				m.unlockOne(held[i])
			}
			return nil, err
		}
		held = append(held, k)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				m.unlockOne(held[i])
			}
		})
	}, nil
}

func (m *KeyedMutex) lockOne(ctx context.Context, key string) error {
	m.mu.Lock()
	l := m.locks[key]
	if l == nil {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
		return ctx.Err()
	}
}

func (m *KeyedMutex) unlockOne(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[key]
	<-l.ch
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
