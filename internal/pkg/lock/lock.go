// Package lock provides per-participant mutual exclusion.
// The ledger serializes balance changes with it and the chat handlers use it so one
// participant's button presses are processed one at a time.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a participant's mutex plus the number of goroutines holding or waiting on it.
type entry struct {
	mu   sync.Mutex
	refs int
}

// ParticipantLock hands out one mutex per participant id. Entries are dropped once
// nobody holds or waits on them, so memory follows the number of active participants.
type ParticipantLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New creates a new ParticipantLock.
func New() *ParticipantLock {
	return &ParticipantLock{entries: make(map[int64]*entry)}
}

func (pl *ParticipantLock) acquire(id int64) *entry {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	e, ok := pl.entries[id]
	if !ok {
		e = &entry{}
		pl.entries[id] = e
	}
	e.refs++
	return e
}

func (pl *ParticipantLock) release(id int64, e *entry) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(pl.entries, id)
	}
}

// Lock blocks until the participant's lock is held.
func (pl *ParticipantLock) Lock(id int64) {
	pl.acquire(id).mu.Lock()
}

// Unlock releases the participant's lock. Unlocking an untracked id is a no-op.
func (pl *ParticipantLock) Unlock(id int64) {
	pl.mu.Lock()
	e, ok := pl.entries[id]
	pl.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	pl.release(id, e)
}

// TryLock acquires the lock without blocking.
func (pl *ParticipantLock) TryLock(id int64) bool {
	e := pl.acquire(id)
	if e.mu.TryLock() {
		return true
	}
	pl.release(id, e)
	return false
}

// LockContext waits for the lock until timeout or ctx is done.
// Returns ErrLockTimeout or the context error when the lock was not acquired.
func (pl *ParticipantLock) LockContext(ctx context.Context, id int64, timeout time.Duration) error {
	e := pl.acquire(id)

	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(locked)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-locked:
		return nil
	case <-timer.C:
		pl.abandon(id, e, locked)
		return ErrLockTimeout
	case <-ctx.Done():
		pl.abandon(id, e, locked)
		return ctx.Err()
	}
}

// abandon releases a lock that a waiter gave up on once it is finally acquired.
func (pl *ParticipantLock) abandon(id int64, e *entry, locked <-chan struct{}) {
	go func() {
		<-locked
		e.mu.Unlock()
		pl.release(id, e)
	}()
}
