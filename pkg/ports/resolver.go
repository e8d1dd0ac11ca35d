package ports

import (
	"context"

	"github.com/weftworks/weft/pkg/domain"
)

// AddressResolver expands symbolic recipient directives (groups,
// "$thred") into concrete participant ids. The thred record is passed
// for thred-scoped directives; implementations must not mutate it.
type AddressResolver interface {
	ResolveParticipants(ctx context.Context, directives []string, thred *domain.Thred) ([]string, error)
}
