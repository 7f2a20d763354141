package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// tracked returns the number of participants with a live entry.
func tracked(pl *ParticipantLock) int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.entries)
}

// TestSerializedUpdatesProperty checks that read-modify-write sequences guarded by
// the participant's lock give the same result as running them one after another.
func TestSerializedUpdatesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")
		id := rapid.Int64Range(1, 1000000).Draw(t, "id")

		deltas := make([]int64, numOps)
		expected := initial
		for i := range deltas {
			deltas[i] = rapid.Int64Range(-500, 500).Draw(t, "delta")
			expected += deltas[i]
		}

		pl := New()
		balance := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, d := range deltas {
			go func(d int64) {
				defer wg.Done()
				pl.Lock(id)
				balance += d
				pl.Unlock(id)
			}(d)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance %d, want %d", balance, expected)
		}
		if n := tracked(pl); n != 0 {
			t.Fatalf("%d entries left after all locks released", n)
		}
	})
}

// TestIndependentParticipantsProperty checks that holding one participant's lock
// never blocks another participant.
func TestIndependentParticipantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(1, 1000).Draw(t, "a")
		b := rapid.Int64Range(1001, 2000).Draw(t, "b")

		pl := New()
		pl.Lock(a)
		defer pl.Unlock(a)

		if !pl.TryLock(b) {
			t.Fatalf("lock on %d blocked %d", a, b)
		}
		pl.Unlock(b)
	})
}

// TestTryLockExclusiveProperty checks that of many concurrent TryLock calls on the
// same participant, exactly one wins while the lock is held.
func TestTryLockExclusiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.Int64Range(1, 1000000).Draw(t, "id")
		n := rapid.IntRange(2, 30).Draw(t, "n")

		pl := New()
		var wins atomic.Int32
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				<-start
				if pl.TryLock(id) {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins.Load() != 1 {
			t.Fatalf("%d TryLock winners, want 1", wins.Load())
		}
		pl.Unlock(id)
		if !pl.TryLock(id) {
			t.Fatalf("%d still locked", id)
		}
		pl.Unlock(id)
	})
}

func TestLockContext_Timeout(t *testing.T) {
	pl := New()
	pl.Lock(7)

	err := pl.LockContext(context.Background(), 7, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pl.LockContext(ctx, 7, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	pl.Unlock(7)

	// Abandoned waiters release the lock once they get it.
	require.Eventually(t, func() bool { return tracked(pl) == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, pl.LockContext(context.Background(), 7, time.Second))
	assert.False(t, pl.TryLock(7))
	pl.Unlock(7)
	assert.Zero(t, tracked(pl))
}

func TestUnlockUntrackedIsNoop(t *testing.T) {
	pl := New()
	assert.NotPanics(t, func() { pl.Unlock(42) })
	assert.Zero(t, tracked(pl))
}
