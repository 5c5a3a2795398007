package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps game type tags to their descriptors. Registration happens at
// startup; lookups happen on every create-table request.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Descriptor)}
}

// Register adds a game type. Duplicate tags and nil factories are programming
// errors surfaced immediately.
func (r *Registry) Register(d Descriptor) error {
	if d.Type == "" || d.New == nil {
		return fmt.Errorf("game: descriptor for %q is incomplete", d.Type)
	}
	if d.MinPlayers < 1 || d.MaxPlayers < d.MinPlayers {
		return fmt.Errorf("game: descriptor for %q has bad player bounds %d-%d",
			d.Type, d.MinPlayers, d.MaxPlayers)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[d.Type]; exists {
		return fmt.Errorf("game: type %q registered twice", d.Type)
	}
	r.types[d.Type] = d
	return nil
}

// Lookup returns the descriptor for a game type tag.
func (r *Registry) Lookup(gameType string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[gameType]
	return d, ok
}

// All returns every descriptor sorted by type tag.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.types))
	for _, d := range r.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Categories groups registered types by category key, each group sorted by
// type tag, for the client's categorized browser.
func (r *Registry) Categories() map[string][]Descriptor {
	out := make(map[string][]Descriptor)
	for _, d := range r.All() {
		out[d.Category] = append(out[d.Category], d)
	}
	return out
}
