package runtime

import (
	"github.com/weftworks/weft/pkg/domain"
)

// terminalReaction marks the implicit terminal state.
const terminalReaction = -1

// nextReaction resolves a transition against the pattern: explicit name
// lookup first, then $next (ordinal successor, terminal when current is
// last), then $terminate. A dangling name is a malformed-pattern error;
// validation catches it at load time, this guards admin-supplied
// transitions.
func nextReaction(p *domain.Pattern, current int, t *domain.Transition) (int, error) {
	switch name := t.TargetName(); name {
	case domain.TransitionTerminate:
		return terminalReaction, nil
	case domain.TransitionNext:
		if current+1 >= len(p.Reactions) {
			return terminalReaction, nil
		}
		return current + 1, nil
	default:
		idx, ok := p.ReactionIndex(name)
		if !ok {
			return 0, &domain.TransitionTargetError{PatternID: p.ID, Target: name}
		}
		return idx, nil
	}
}

// nextInput computes the event the new reaction is applied to
// immediately, if any: the triggering event for forward, a captured
// scope value for local/replay, nothing for default. A missing local
// value degrades to no input; the transition itself stands.
func nextInput(t *domain.Transition, trigger *domain.Event, th *domain.Thred) *domain.Event {
	switch t.Mode() {
	case domain.InputForward:
		return trigger
	case domain.InputLocal, domain.InputReplay:
		v, ok := th.Local(t.LocalName)
		if !ok {
			return nil
		}
		if ev, ok := domain.EventFromValue(v); ok {
			return ev
		}
		return domain.NewReplayEvent(th.ID, t.LocalName, v)
	default:
		return nil
	}
}
