package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Package locks provides a process-wide table of advisory locks.
// Document operations lock per (year, itemID); assessment snapshot saves
// lock per year. Acquisition blocks with a bounded wait so a stuck
// filesystem operation cannot deadlock the whole process.

// Table is a keyed advisory lock table. The zero value is not usable;
// construct with New.
type Table struct {
	waitTimeout time.Duration

	mu   sync.Mutex
	sems map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New creates a lock table. waitTimeout bounds every Acquire; zero or
// negative means wait as long as the caller's context allows.
func New(waitTimeout time.Duration) *Table {
	return &Table{
		waitTimeout: waitTimeout,
		sems:        make(map[string]*entry),
	}
}

// DocumentKey is the lock key for operations on one (year, itemID)
// document partition.
func DocumentKey(year, itemID int) string {
	return fmt.Sprintf("doc/%d/%d", year, itemID)
}

// SnapshotKey is the lock key for assessment snapshot saves of one year.
func SnapshotKey(year int) string {
	return fmt.Sprintf("snapshot/%d", year)
}

// Acquire takes the lock for key, blocking until it is available, the
// wait timeout elapses, or ctx is done. The returned release function
// must be called exactly once.
func (t *Table) Acquire(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	e, ok := t.sems[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		t.sems[key] = e
	}
	e.refs++
	t.mu.Unlock()

	acquireCtx := ctx
	if t.waitTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, t.waitTimeout)
		defer cancel()
	}

	if err := e.sem.Acquire(acquireCtx, 1); err != nil {
		t.put(key, e)
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			t.put(key, e)
		})
	}, nil
}

// put drops a reference and evicts idle entries so the table does not
// grow without bound across years and items.
func (t *Table) put(key string, e *entry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.sems, key)
	}
	t.mu.Unlock()
}
