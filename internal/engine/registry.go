package engine

import (
	"fmt"
	"sync"

	"arena-game-bot/internal/game"
)

// Registry maps each human participant to the one session they are active in.
// Reserve checks and records under one lock, so concurrent reservations for the
// same participant cannot both succeed.
type Registry struct {
	mu     sync.Mutex
	active map[int64]string
	held   map[string][]int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[int64]string),
		held:   make(map[string][]int64),
	}
}

// Reserve records sessionID for every human participant. The House is never
// reserved. It fails with ErrAlreadyInSession, recording nothing, if any of
// them already holds a reservation.
func (r *Registry) Reserve(sessionID string, participants ...int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[sessionID]; ok {
		return fmt.Errorf("session %s already reserved", sessionID)
	}

	humans := make([]int64, 0, len(participants))
	for _, p := range participants {
		if p == game.House {
			continue
		}
		if existing, ok := r.active[p]; ok {
			return fmt.Errorf("%w: participant %d holds session %s", ErrAlreadyInSession, p, existing)
		}
		humans = append(humans, p)
	}

	for _, p := range humans {
		r.active[p] = sessionID
	}
	r.held[sessionID] = humans
	return nil
}

// Release frees every reservation held by sessionID. Releasing twice is a no-op.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.held[sessionID] {
		if r.active[p] == sessionID {
			delete(r.active, p)
		}
	}
	delete(r.held, sessionID)
}

// SessionOf returns the session the participant is active in.
func (r *Registry) SessionOf(participant int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[participant]
	return id, ok
}

// Len returns the number of reserved participants.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
