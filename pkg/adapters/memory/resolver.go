package memory

import (
	"context"

	"github.com/weftworks/weft/pkg/domain"
)

// Resolver implements ports.AddressResolver with a static group table.
// Unknown directives resolve to themselves, treating them as concrete
// participant ids.
type Resolver struct {
	groups map[string][]string
}

// NewResolver creates a resolver with an optional group table.
func NewResolver(groups map[string][]string) *Resolver {
	if groups == nil {
		groups = make(map[string][]string)
	}
	return &Resolver{groups: groups}
}

// ResolveParticipants expands directives into participant ids.
func (r *Resolver) ResolveParticipants(_ context.Context, directives []string, thred *domain.Thred) ([]string, error) {
	var out []string
	for _, d := range directives {
		switch {
		case d == domain.DirectiveThred:
			if thred != nil {
				out = append(out, thred.Participants...)
			}
		default:
			if members, ok := r.groups[d]; ok {
				out = append(out, members...)
				continue
			}
			out = append(out, d)
		}
	}
	return out, nil
}
