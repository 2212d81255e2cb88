package services

import (
	"sync"

	"github.com/google/uuid"
)

// draftLocks serializes mutations per draft id. Entries are reference
// counted and removed once nobody holds or waits for them.
type draftLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*draftLock
}

type draftLock struct {
	mu   sync.Mutex
	refs int
}

func newDraftLocks() *draftLocks {
	return &draftLocks{locks: make(map[uuid.UUID]*draftLock)}
}

// lock acquires the lock for id and returns its release function
func (l *draftLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &draftLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *draftLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
