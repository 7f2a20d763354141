package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages game rules registration and lookup.
// It provides a thread-safe way to register and retrieve rules by game type.
type Registry struct {
	rules map[GameType]Rules
	mu    sync.RWMutex
}

// NewRegistry creates a new rules registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[GameType]Rules),
	}
}

// Register adds rules to the registry.
// If rules for the same game type already exist, they are replaced.
func (r *Registry) Register(g Rules) error {
	if g == nil {
		return fmt.Errorf("cannot register nil rules")
	}
	if g.Type() == "" {
		return fmt.Errorf("game type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[g.Type()] = g
	return nil
}

// Get retrieves rules by game type.
func (r *Registry) Get(t GameType) (Rules, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.rules[t]
	return g, ok
}

// Types returns all registered game types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.rules))
	for t := range r.rules {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
