package sw

import (
	"context"
	"sync"
)

// KeyedMutex serializes work per restaurant id. Each held key owns a
// one-slot channel; waiters block on it or on their context.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[int64]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[int64]*keySlot)}
}

func (k *KeyedMutex) acquire(key int64) *keySlot {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.slots[key]
	if !ok {
		s = &keySlot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *KeyedMutex) release(key int64, s *keySlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// LockContext blocks until key is held or ctx is done.
func (k *KeyedMutex) LockContext(ctx context.Context, key int64) error {
	s := k.acquire(key)
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.release(key, s)
		return ctx.Err()
	}
}

// TryLock takes key only if nobody holds it.
func (k *KeyedMutex) TryLock(key int64) bool {
	s := k.acquire(key)
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		k.release(key, s)
		return false
	}
}

// Unlock releases key. Unlocking a key that is not held panics.
func (k *KeyedMutex) Unlock(key int64) {
	k.mu.Lock()
	s, ok := k.slots[key]
	k.mu.Unlock()
	if !ok {
		panic("sw: unlock of unlocked key")
	}
	select {
	case <-s.ch:
	default:
		panic("sw: unlock of unlocked key")
	}
	k.release(key, s)
}
