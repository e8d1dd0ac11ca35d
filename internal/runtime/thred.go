package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
)

// considerResult is what one consider cascade produced: the messages to
// dispatch, the number of committed transitions and whether the thred
// reached a terminal state.
type considerResult struct {
	Messages   []*domain.Message
	Commits    int
	Terminated bool
}

// driver is the per-thred state machine. It is stateless; all mutable
// state lives on the thred record, which the caller holds the per-key
// lock for.
type driver struct {
	conditions *conditionEvaluator
	evaluator  ports.Evaluator
	resolver   ports.AddressResolver
	effects    []Effect
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time
}

// withEffects returns a copy of the driver with the effect chain
// replaced. Used for trial matching, where effects are staged.
func (d *driver) withEffects(effects []Effect) *driver {
	dd := *d
	dd.effects = effects
	return &dd
}

// consider applies one inbound event to the thred. The record is
// synchronized first: a passed expiry deadline forces the expiry
// transition before the event is even evaluated. Chained forward/local
// transitions run to completion inside this call; the caller observes
// the full cascade as one unit.
func (d *driver) consider(ctx context.Context, ev *domain.Event, th *domain.Thred, p *domain.Pattern) (considerResult, error) {
	start := d.now()
	defer func() {
		d.metrics.ConsiderSeconds.Observe(d.now().Sub(start).Seconds())
	}()

	var res considerResult
	if err := d.synchronize(ctx, th, p, false, &res); err != nil {
		return res, err
	}
	if res.Terminated {
		return res, nil
	}

	err := d.drain(ctx, th, p, []*domain.Event{ev}, &res)
	return res, err
}

// synchronize applies the current reaction's expiry transition when its
// deadline has passed (or unconditionally with force, for the
// timeoutReaction operation). The expiry transition may itself feed a
// replayed input through the match loop.
func (d *driver) synchronize(ctx context.Context, th *domain.Thred, p *domain.Pattern, force bool, res *considerResult) error {
	if !th.Active {
		return nil
	}
	cur := p.ReactionAt(th.CurrentReaction)
	if cur == nil || cur.Expiry == nil {
		if force {
			return fmt.Errorf("reaction %s has no expiry", cur.Label(th.CurrentReaction))
		}
		return nil
	}
	if !force && !th.ExpiryDue(d.now()) {
		return nil
	}

	trans := &cur.Expiry.Transition
	next, err := nextReaction(p, th.CurrentReaction, trans)
	if err != nil {
		return err
	}

	d.logger.Debug("expiry transition",
		"thred", th.ID,
		"reaction", cur.Label(th.CurrentReaction),
		"target", trans.TargetName(),
	)
	if err := d.commit(ctx, th, p, nil, next, res); err != nil {
		return err
	}
	if next == terminalReaction {
		res.Terminated = true
		return nil
	}

	if in := nextInput(trans, nil, th); in != nil {
		return d.drain(ctx, th, p, []*domain.Event{in}, res)
	}
	return nil
}

// drain runs the match loop: apply the front input to the current
// reaction, commit on match, then loop while the transition produced a
// next input. An explicit queue bounds stack depth and keeps the
// lock-holding story simple.
func (d *driver) drain(ctx context.Context, th *domain.Thred, p *domain.Pattern, pending []*domain.Event, res *considerResult) error {
	for len(pending) > 0 && th.Active {
		input := pending[0]
		pending = pending[1:]

		curIdx := th.CurrentReaction
		cur := p.ReactionAt(curIdx)
		if cur == nil {
			return fmt.Errorf("thred %s: reaction index %d out of range", th.ID, curIdx)
		}

		mres, err := d.conditions.match(ctx, cur.Condition, reactionPath(curIdx), input, th)
		if err != nil {
			return err
		}
		if !mres.Matched {
			d.logger.Debug("no transition",
				"thred", th.ID,
				"reaction", cur.Label(curIdx),
				"event", input.ID,
				"eventType", input.Type,
			)
			d.metrics.NoMatches.Inc()
			continue
		}
		d.metrics.Matches.Inc()

		next, err := nextReaction(p, curIdx, mres.Transition)
		if err != nil {
			return err
		}

		// Resolve the outbound message before committing so a
		// transform or resolver failure aborts this transition attempt.
		var msg *domain.Message
		if mres.Transform != nil {
			msg, err = d.buildMessage(ctx, &mres, input, th)
			if err != nil {
				return err
			}
		}

		if err := d.commit(ctx, th, p, input, next, res); err != nil {
			return err
		}
		if msg != nil {
			res.Messages = append(res.Messages, msg)
		}

		if next == terminalReaction {
			res.Terminated = true
			return nil
		}
		if in := nextInput(mres.Transition, input, th); in != nil {
			pending = append(pending, in)
		}
	}
	return nil
}

// commit runs the effects and applies the transition to the record:
// metadata refresh, condition-state reset, reaction move and expiry
// re-arm. Effects run first; a failing effect leaves the record at the
// pre-transition value.
func (d *driver) commit(ctx context.Context, th *domain.Thred, p *domain.Pattern, trigger *domain.Event, next int, res *considerResult) error {
	from := p.ReactionAt(th.CurrentReaction).Label(th.CurrentReaction)
	to := "$terminate"
	if next != terminalReaction {
		to = p.ReactionAt(next).Label(next)
	}

	for _, ef := range d.effects {
		if err := ef.Apply(ctx, th, trigger, from, to); err != nil {
			return fmt.Errorf("effect failed, transition %s -> %s aborted: %w", from, to, err)
		}
	}

	if trigger != nil {
		if trigger.Data.Title != "" {
			th.Meta.Label = trigger.Data.Title
		}
		if trigger.Data.Description != "" {
			th.Meta.Description = trigger.Data.Description
		}
	}
	th.ClearCondState()
	res.Commits++

	if next == terminalReaction {
		th.Active = false
		th.ArmExpiry(nil, d.now())
		d.metrics.Terminations.Inc()
		return nil
	}

	th.CurrentReaction = next
	th.ArmExpiry(p.ReactionAt(next), d.now())
	return nil
}

// buildMessage renders the transform and resolves its recipient
// directives into participant ids, merging them into the thred's
// cumulative participant set.
func (d *driver) buildMessage(ctx context.Context, mres *matchResult, input *domain.Event, th *domain.Thred) (*domain.Message, error) {
	b := bindings(input, th)

	content := make(map[string]any, len(mres.Transform.Content))
	for k, v := range mres.Transform.Content {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, "{{") {
			content[k] = v
			continue
		}
		rendered, err := d.evaluator.Render(ctx, s, b)
		if err != nil {
			return nil, fmt.Errorf("transform field %q: %w", k, err)
		}
		content[k] = rendered
	}

	title := mres.Transform.Title
	if strings.Contains(title, "{{") {
		rendered, err := d.evaluator.Render(ctx, title, b)
		if err != nil {
			return nil, fmt.Errorf("transform title: %w", err)
		}
		title = rendered
	}

	directives := []string{domain.DirectiveThred}
	if mres.Publish != nil {
		directives = mres.Publish.To
	}
	ids, err := d.resolver.ResolveParticipants(ctx, directives, th)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients %v: %w", directives, err)
	}
	th.AddParticipants(ids)

	return &domain.Message{
		ID:      uuid.NewString(),
		ThredID: th.ID,
		To:      ids,
		Event: domain.Event{
			ID:      uuid.NewString(),
			Type:    domain.EventTypeMessage,
			Re:      input.ID,
			ThredID: th.ID,
			Source:  domain.Source{ID: "weft"},
			Time:    d.now().UTC(),
			Data: domain.EventData{
				Title:   title,
				Content: content,
			},
		},
	}, nil
}

// transition applies an explicit, administratively supplied transition,
// bypassing condition evaluation but reusing the commit and chained
// input machinery.
func (d *driver) transition(ctx context.Context, th *domain.Thred, p *domain.Pattern, trans *domain.Transition) (considerResult, error) {
	var res considerResult
	next, err := nextReaction(p, th.CurrentReaction, trans)
	if err != nil {
		return res, err
	}
	if err := d.commit(ctx, th, p, nil, next, &res); err != nil {
		return res, err
	}
	if next == terminalReaction {
		res.Terminated = true
		return res, nil
	}
	if in := nextInput(trans, nil, th); in != nil {
		err = d.drain(ctx, th, p, []*domain.Event{in}, &res)
	}
	return res, err
}

// expire forces the current reaction's expiry transition, regardless of
// deadline. Used by the timeoutReaction operation.
func (d *driver) expire(ctx context.Context, th *domain.Thred, p *domain.Pattern) (considerResult, error) {
	var res considerResult
	err := d.synchronize(ctx, th, p, true, &res)
	return res, err
}
