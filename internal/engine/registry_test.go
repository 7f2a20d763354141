package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"arena-game-bot/internal/game"
)

func TestRegistry_ReserveAndRelease(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Reserve("a", 1, 2))
	id, ok := r.SessionOf(1)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, 2, r.Len())

	err := r.Reserve("b", 3, 2)
	assert.ErrorIs(t, err, ErrAlreadyInSession)
	_, ok = r.SessionOf(3)
	assert.False(t, ok, "failed reserve records nothing")

	r.Release("a")
	r.Release("a")
	assert.Zero(t, r.Len())

	require.NoError(t, r.Reserve("b", 3, 2))
}

func TestRegistry_HouseIsNeverReserved(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Reserve("a", 1, game.House))
	require.NoError(t, r.Reserve("b", 2, game.House))

	_, ok := r.SessionOf(game.House)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ReleaseUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Reserve("a", 1))
	r.Release("missing")
	assert.Equal(t, 1, r.Len())
}

// TestRegistryExclusiveProperty races reservations over a small pool of
// participants and checks nobody ends up in two sessions.
func TestRegistryExclusiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 20).Draw(t, "sessions")
		pairs := make([][2]int64, n)
		for i := range pairs {
			a := rapid.Int64Range(1, 6).Draw(t, fmt.Sprintf("a%d", i))
			b := rapid.Int64Range(0, 6).Draw(t, fmt.Sprintf("b%d", i))
			pairs[i] = [2]int64{a, b}
		}

		r := NewRegistry()
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won = make(map[string][2]int64)
		)
		for i, p := range pairs {
			if p[0] == p[1] {
				continue
			}
			wg.Add(1)
			go func(id string, p [2]int64) {
				defer wg.Done()
				if r.Reserve(id, p[0], p[1]) == nil {
					mu.Lock()
					won[id] = p
					mu.Unlock()
				}
			}(fmt.Sprintf("s%d", i), p)
		}
		wg.Wait()

		seen := make(map[int64]string)
		for id, p := range won {
			for _, participant := range p {
				if participant == game.House {
					continue
				}
				if other, dup := seen[participant]; dup {
					t.Fatalf("participant %d reserved by %s and %s", participant, other, id)
				}
				seen[participant] = id
				if got, _ := r.SessionOf(participant); got != id {
					t.Fatalf("participant %d maps to %s, want %s", participant, got, id)
				}
			}
		}
		if r.Len() != len(seen) {
			t.Fatalf("registry holds %d participants, winners hold %d", r.Len(), len(seen))
		}

		for id := range won {
			r.Release(id)
		}
		if r.Len() != 0 {
			t.Fatalf("registry not empty after release: %d", r.Len())
		}
	})
}
