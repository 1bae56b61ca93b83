package migration

import (
	"sync"

	"github.com/loykin/safemigrate/internal/store"
)

// runLocks tracks which stores have a run in flight.
type runLocks struct {
	mu   sync.Mutex
	held map[*store.Store]struct{}
}

var activeRuns = &runLocks{held: make(map[*store.Store]struct{})}

// tryAcquire returns false without blocking when st is already held.
func (l *runLocks) tryAcquire(st *store.Store) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[st]; ok {
		return false
	}
	l.held[st] = struct{}{}
	return true
}

func (l *runLocks) release(st *store.Store) {
	l.mu.Lock()
	delete(l.held, st)
	l.mu.Unlock()
}
