package ports

import (
	"context"

	"github.com/weftworks/weft/pkg/domain"
)

// ThredStore persists thred records for durability and restart
// recovery. Load returns domain.ErrThredNotFound for unknown ids.
type ThredStore interface {
	Save(ctx context.Context, t *domain.Thred) error
	Load(ctx context.Context, id string) (*domain.Thred, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// LogStore appends audit records for committed transitions. An append
// failure aborts the in-progress transition.
type LogStore interface {
	Append(ctx context.Context, rec *domain.ThredLogRecord) error
}

// PatternLoader provides pattern definitions, both at startup and for
// resetPattern reloads.
type PatternLoader interface {
	// LoadPatterns returns all known patterns in registration order.
	LoadPatterns(ctx context.Context) ([]*domain.Pattern, error)

	// LoadPattern returns one pattern by id, or domain.ErrPatternNotFound.
	LoadPattern(ctx context.Context, id string) (*domain.Pattern, error)
}
