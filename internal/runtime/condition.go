package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
)

// matchResult is the outcome of evaluating a condition tree against one
// event: whether it matched and which consequences apply. For or
// conditions the winning operand's transform/publish/transition
// override the or-level ones.
type matchResult struct {
	Matched    bool
	Transform  *domain.Transform
	Publish    *domain.Publish
	Transition *domain.Transition
}

// conditionEvaluator composes the external predicate evaluator into
// filter/and/or semantics. And-operand satisfaction is persisted on the
// thred record so partial matches survive across events (and across
// restarts, since the record is durable).
type conditionEvaluator struct {
	eval   ports.Evaluator
	logger *slog.Logger
}

// condChanges stages the record mutations a condition tree wants to
// make: operand flags, branch resets and onTrue captures. Nothing
// touches the thred until the whole tree evaluated without error, so a
// failing operand leaves the conversation exactly as it was.
type condChanges struct {
	flags    map[string]bool
	resets   []string
	captures []scopeWrite
}

type scopeWrite struct {
	name  string
	value any
}

func newCondChanges() *condChanges {
	return &condChanges{flags: make(map[string]bool)}
}

// satisfied reports an operand flag, staged changes shadowing the
// persisted state.
func (ch *condChanges) satisfied(th *domain.Thred, path string) bool {
	if v, ok := ch.flags[path]; ok {
		return v
	}
	return th.CondState[path]
}

// reset clears the flags under a path prefix: staged ones immediately,
// persisted ones at apply time.
func (ch *condChanges) reset(path string) {
	for key := range ch.flags {
		if key == path || strings.HasPrefix(key, path+".") {
			delete(ch.flags, key)
		}
	}
	ch.resets = append(ch.resets, path)
}

// apply merges the staged changes into the record.
func (ch *condChanges) apply(th *domain.Thred) {
	for _, w := range ch.captures {
		th.SetLocal(w.name, w.value)
	}
	for path, on := range ch.flags {
		if on {
			th.CondState[path] = true
		}
	}
	for _, path := range ch.resets {
		for key := range th.CondState {
			if key == path || strings.HasPrefix(key, path+".") {
				delete(th.CondState, key)
			}
		}
	}
}

// bindings builds the evaluation environment with staged captures
// overlaid, so later operands see values captured earlier in the same
// event.
func (ch *condChanges) bindings(ev *domain.Event, th *domain.Thred) map[string]any {
	b := bindings(ev, th)
	if th == nil || len(ch.captures) == 0 {
		return b
	}
	scope := b["scope"].(map[string]any)
	for _, w := range ch.captures {
		if e, ok := domain.EventFromValue(w.value); ok {
			scope[w.name] = e.Map()
			continue
		}
		scope[w.name] = w.value
	}
	return b
}

// match evaluates cond at the given operand path. Evaluation errors
// propagate up and are treated by the driver as a fatal no-match for
// this event: logged, conversation unchanged. Record mutations (operand
// flags, captures) are staged and only applied once the whole tree
// evaluated cleanly.
func (ce *conditionEvaluator) match(ctx context.Context, cond *domain.Condition, path string, ev *domain.Event, th *domain.Thred) (matchResult, error) {
	ch := newCondChanges()
	res, err := ce.evalCond(ctx, cond, path, ev, th, ch)
	if err != nil {
		return matchResult{}, err
	}
	ch.apply(th)
	return res, nil
}

func (ce *conditionEvaluator) evalCond(ctx context.Context, cond *domain.Condition, path string, ev *domain.Event, th *domain.Thred, ch *condChanges) (matchResult, error) {
	switch cond.Kind {
	case domain.KindFilter:
		return ce.evalFilter(ctx, cond, ev, th, ch)
	case domain.KindAnd:
		return ce.evalAnd(ctx, cond, path, ev, th, ch)
	case domain.KindOr:
		return ce.evalOr(ctx, cond, path, ev, th, ch)
	default:
		return matchResult{}, fmt.Errorf("unknown condition kind %q", cond.Kind)
	}
}

func (ce *conditionEvaluator) evalFilter(ctx context.Context, cond *domain.Condition, ev *domain.Event, th *domain.Thred, ch *condChanges) (matchResult, error) {
	b := ch.bindings(ev, th)
	v, err := ce.eval.Evaluate(ctx, cond.Expr, b)
	if err != nil {
		return matchResult{}, fmt.Errorf("predicate %q: %w", cond.Expr, err)
	}
	if !predicateTrue(v) {
		return matchResult{}, nil
	}

	if cond.OnTrue != nil {
		if err := ce.capture(ctx, cond.OnTrue, b, ev, ch); err != nil {
			return matchResult{}, err
		}
	}

	return matchResult{
		Matched:    true,
		Transform:  cond.Transform,
		Publish:    cond.Publish,
		Transition: cond.Transition,
	}, nil
}

// capture stages a filter's onTrue side effect: the expression's value
// (or the whole triggering event) destined for the thred scope.
func (ce *conditionEvaluator) capture(ctx context.Context, cap *domain.Capture, b map[string]any, ev *domain.Event, ch *condChanges) error {
	if cap.Expr == "" {
		ch.captures = append(ch.captures, scopeWrite{name: cap.Name, value: ev})
		return nil
	}
	v, err := ce.eval.Evaluate(ctx, cap.Expr, b)
	if err != nil {
		return fmt.Errorf("onTrue %q: %w", cap.Expr, err)
	}
	ch.captures = append(ch.captures, scopeWrite{name: cap.Name, value: v})
	return nil
}

// evalAnd evaluates only the operands not yet satisfied for this
// conversation. Operand-level transforms are ignored; the and node
// carries the shared consequences. On a full match the persisted flags
// under this path are reset so the reaction can be re-entered later.
func (ce *conditionEvaluator) evalAnd(ctx context.Context, cond *domain.Condition, path string, ev *domain.Event, th *domain.Thred, ch *condChanges) (matchResult, error) {
	all := true
	for i, op := range cond.Operands {
		opPath := operandPath(path, i)
		if ch.satisfied(th, opPath) {
			continue
		}
		res, err := ce.evalCond(ctx, op, opPath, ev, th, ch)
		if err != nil {
			return matchResult{}, err
		}
		if res.Matched {
			ch.flags[opPath] = true
		} else {
			all = false
		}
	}
	if !all {
		return matchResult{}, nil
	}

	ch.reset(path)
	return matchResult{
		Matched:    true,
		Transform:  cond.Transform,
		Publish:    cond.Publish,
		Transition: cond.Transition,
	}, nil
}

// evalOr evaluates operands in declaration order and returns on the
// first match; later operands are not evaluated for this event.
func (ce *conditionEvaluator) evalOr(ctx context.Context, cond *domain.Condition, path string, ev *domain.Event, th *domain.Thred, ch *condChanges) (matchResult, error) {
	for i, op := range cond.Operands {
		res, err := ce.evalCond(ctx, op, operandPath(path, i), ev, th, ch)
		if err != nil {
			return matchResult{}, err
		}
		if !res.Matched {
			continue
		}
		if res.Transform == nil {
			res.Transform = cond.Transform
		}
		if res.Publish == nil {
			res.Publish = cond.Publish
		}
		if res.Transition == nil {
			res.Transition = cond.Transition
		}
		return res, nil
	}
	return matchResult{}, nil
}

// operandPath addresses one operand inside a reaction's condition tree.
func operandPath(parent string, idx int) string {
	return parent + "." + strconv.Itoa(idx)
}

// reactionPath is the root path for a reaction's condition tree.
func reactionPath(idx int) string {
	return "r" + strconv.Itoa(idx)
}

// bindings builds the evaluation environment for one event against one
// thred.
func bindings(ev *domain.Event, th *domain.Thred) map[string]any {
	b := map[string]any{
		"event": ev.Map(),
		"scope": map[string]any{},
	}
	if th != nil {
		b["scope"] = scopeMap(th)
		b["thredId"] = th.ID
	}
	return b
}

// scopeMap exposes the thred scope with whole-event captures flattened
// to their map form so expressions can reach into them.
func scopeMap(th *domain.Thred) map[string]any {
	out := make(map[string]any, len(th.Scope))
	for k, v := range th.Scope {
		if ev, ok := domain.EventFromValue(v); ok {
			out[k] = ev.Map()
			continue
		}
		out[k] = v
	}
	return out
}

// predicateTrue interprets the evaluator's result as a match verdict.
func predicateTrue(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}
