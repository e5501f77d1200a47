package common

import (
	"sync"
)

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex hands out one mutex per key. Operations on different keys never block each other. Entries are
// dropped as soon as nobody holds or waits for them, so the map does not grow with the number of keys seen.
type KeyMutex[T comparable] struct {
	mu    sync.Mutex
	locks map[T]*keyedLock
}

// Lock acquires a lock for the given key and returns a releaser function. Caller should call releaser after
// it is done with the lock.
func (m *KeyMutex[T]) Lock(key T) func() {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[T]*keyedLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len returns the number of keys currently locked or waited on.
func (m *KeyMutex[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}
