package memory

import (
	"context"
	"sync"

	"github.com/weftworks/weft/pkg/domain"
)

// Loader implements ports.PatternLoader over a fixed set of patterns.
// Swap replaces a definition so resetPattern can be exercised without
// a filesystem.
type Loader struct {
	mu       sync.RWMutex
	order    []string
	patterns map[string]*domain.Pattern
}

// NewLoader creates a loader serving the given patterns in order.
func NewLoader(patterns ...*domain.Pattern) *Loader {
	l := &Loader{patterns: make(map[string]*domain.Pattern)}
	for _, p := range patterns {
		l.order = append(l.order, p.ID)
		l.patterns[p.ID] = p
	}
	return l
}

// LoadPatterns returns all patterns in registration order.
func (l *Loader) LoadPatterns(_ context.Context) ([]*domain.Pattern, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Pattern, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.patterns[id])
	}
	return out, nil
}

// LoadPattern returns one pattern by id.
func (l *Loader) LoadPattern(_ context.Context, id string) (*domain.Pattern, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.patterns[id]
	if !ok {
		return nil, domain.ErrPatternNotFound
	}
	return p, nil
}

// Swap replaces (or adds) a definition served by subsequent loads.
func (l *Loader) Swap(p *domain.Pattern) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.patterns[p.ID]; !exists {
		l.order = append(l.order, p.ID)
	}
	l.patterns[p.ID] = p
}
