// Package keylock provides per-key mutual exclusion so that writes to the
// same learner entity are applied by a single writer at a time.
package keylock

import (
	"strings"
	"sync"
)

// Map hands out one mutex per key. Entries are reference counted and removed
// once no goroutine holds or waits for them.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty lock map.
func New() *Map {
	return &Map{locks: make(map[string]*entry)}
}

// Lock blocks until the key is held and returns the matching unlock func.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Key joins key parts with ":".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
