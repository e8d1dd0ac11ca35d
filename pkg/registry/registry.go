// Package registry holds the loaded pattern definitions. Registration
// order is significant: events without a thredId are tried against
// patterns in the order they were registered.
package registry

import (
	"fmt"
	"sync"

	"github.com/weftworks/weft/pkg/domain"
)

// Registry manages the available patterns. Patterns are validated on
// the way in, so a malformed definition fails loudly at load or reset
// time rather than mid-conversation.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	patterns map[string]*domain.Pattern
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		patterns: make(map[string]*domain.Pattern),
	}
}

// Register adds a pattern. Registering an id twice is an error; use
// Reset to swap a definition.
func (r *Registry) Register(p *domain.Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.patterns[p.ID]; exists {
		return fmt.Errorf("pattern %q is already registered", p.ID)
	}
	r.patterns[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Reset atomically swaps the definition for an already registered id.
// Threds created before the reset keep the pattern value they were
// handed at creation; only new instances see the swap.
func (r *Registry) Reset(p *domain.Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.patterns[p.ID]; !exists {
		return fmt.Errorf("cannot reset %q: %w", p.ID, domain.ErrPatternNotFound)
	}
	r.patterns[p.ID] = p
	return nil
}

// Get returns the current revision of a pattern.
func (r *Registry) Get(id string) (*domain.Pattern, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patterns[id]
	return p, ok
}

// All returns the current revisions in registration order.
func (r *Registry) All() []*domain.Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Pattern, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.patterns[id])
	}
	return out
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
