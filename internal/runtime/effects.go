package runtime

import (
	"context"

	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
)

// Effect is a side-effect hook run after a match and before the
// transition is committed. An effect failure aborts the transition; the
// thred stays at its last committed state.
type Effect interface {
	Apply(ctx context.Context, th *domain.Thred, trigger *domain.Event, from, to string) error
}

// stagedEffects records effect applications instead of running them,
// so a trial-matched cascade can be admitted or discarded before any
// durable effect fires. replay runs the recorded applications against
// the real effects once the creation is accepted.
type stagedEffects struct {
	calls []stagedCall
}

type stagedCall struct {
	th       *domain.Thred
	trigger  *domain.Event
	from, to string
}

func (s *stagedEffects) Apply(_ context.Context, th *domain.Thred, trigger *domain.Event, from, to string) error {
	s.calls = append(s.calls, stagedCall{th: th, trigger: trigger, from: from, to: to})
	return nil
}

func (s *stagedEffects) replay(ctx context.Context, effects []Effect) error {
	for _, c := range s.calls {
		for _, ef := range effects {
			if err := ef.Apply(ctx, c.th, c.trigger, c.from, c.to); err != nil {
				return err
			}
		}
	}
	return nil
}

// auditEffect writes a ThredLogRecord through the log store for every
// committed transition.
type auditEffect struct {
	logs ports.LogStore
}

// NewAuditEffect creates the built-in audit-log effect.
func NewAuditEffect(logs ports.LogStore) Effect {
	return &auditEffect{logs: logs}
}

func (e *auditEffect) Apply(ctx context.Context, th *domain.Thred, trigger *domain.Event, from, to string) error {
	rec := &domain.ThredLogRecord{
		ThredID:      th.ID,
		PatternID:    th.PatternID,
		FromReaction: from,
		ToReaction:   to,
	}
	if trigger != nil {
		rec.EventID = trigger.ID
		rec.Time = trigger.Time
	}
	return e.logs.Append(ctx, rec)
}
