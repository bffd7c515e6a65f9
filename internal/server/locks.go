package server

import (
	"sort"
	"sync"
)

// entryLocks serializes operations on the same top-level entry names.
// Locks are reference counted and dropped once no goroutine holds or waits
// on them.
type entryLocks struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newEntryLocks() *entryLocks {
	return &entryLocks{locks: make(map[string]*entryLock)}
}

// Lock acquires the locks for every key in sorted order and returns a
// function that releases them. Duplicate keys are collapsed.
func (l *entryLocks) Lock(keys ...string) (unlock func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	held := make([]*entryLock, 0, len(uniq))
	for _, k := range uniq {
		l.mu.Lock()
		el, ok := l.locks[k]
		if !ok {
			el = &entryLock{}
			l.locks[k] = el
		}
		el.refs++
		l.mu.Unlock()

		el.mu.Lock()
		held = append(held, el)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			el := held[i]
			el.mu.Unlock()

			l.mu.Lock()
			el.refs--
			if el.refs == 0 {
				delete(l.locks, uniq[i])
			}
			l.mu.Unlock()
		}
	}
}

// size reports how many keys currently have a lock allocated.
func (l *entryLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
