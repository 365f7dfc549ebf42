package service

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyedLock serializes work per key. Entries are reference counted and
// removed once the last holder unlocks.
type keyedLock struct {
	locks *xsync.MapOf[string, *refMutex]
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: xsync.NewMapOf[string, *refMutex]()}
}

// Lock blocks until key is free and returns the unlock func.
func (k *keyedLock) Lock(key string) func() {
	l, _ := k.locks.Compute(key, func(old *refMutex, loaded bool) (*refMutex, bool) {
		if !loaded {
			old = &refMutex{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.locks.Compute(key, func(old *refMutex, loaded bool) (*refMutex, bool) {
			if !loaded {
				return old, true
			}
			old.refs--
			return old, old.refs <= 0
		})
	}
}

// Size is the number of keys currently held or waited on.
func (k *keyedLock) Size() int {
	return k.locks.Size()
}
