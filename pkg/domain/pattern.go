package domain

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Expiry attaches a timeout to a reaction. The deadline is computed
// relative to the moment the reaction becomes current; when it passes,
// Transition is applied before the next inbound event is evaluated.
type Expiry struct {
	Interval   int64      `json:"interval" yaml:"interval"` // milliseconds
	Transition Transition `json:"transition" yaml:"transition"`
}

// Duration returns the expiry interval.
func (e *Expiry) Duration() time.Duration {
	return time.Duration(e.Interval) * time.Millisecond
}

// Reaction is one state in a pattern's state machine. Anonymous
// reactions are addressable only by ordinal position.
type Reaction struct {
	Name      string     `json:"name,omitempty" yaml:"name,omitempty"`
	Condition *Condition `json:"condition" yaml:"condition"`
	Expiry    *Expiry    `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

// Label returns the reaction's name, or its ordinal form for anonymous
// reactions.
func (r *Reaction) Label(idx int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", idx)
}

// Pattern is the immutable, versioned definition of a workflow: an
// ordered list of reactions. A pattern value is never mutated after
// load; resetPattern swaps the registry slot with a new value, leaving
// in-flight threds on the revision they started with.
type Pattern struct {
	ID               string      `json:"id" yaml:"id"`
	Name             string      `json:"name,omitempty" yaml:"name,omitempty"`
	InstanceInterval int64       `json:"instanceInterval,omitempty" yaml:"instanceInterval,omitempty"` // milliseconds
	MaxInstances     int         `json:"maxInstances,omitempty" yaml:"maxInstances,omitempty"`
	Reactions        []*Reaction `json:"reactions" yaml:"reactions"`
}

// Interval returns the minimum spacing between new instances.
func (p *Pattern) Interval() time.Duration {
	return time.Duration(p.InstanceInterval) * time.Millisecond
}

// ReactionIndex resolves a reaction name to its position.
func (p *Pattern) ReactionIndex(name string) (int, bool) {
	for i, r := range p.Reactions {
		if r.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ReactionAt returns the reaction at idx, or nil when out of range.
func (p *Pattern) ReactionAt(idx int) *Reaction {
	if idx < 0 || idx >= len(p.Reactions) {
		return nil
	}
	return p.Reactions[idx]
}

// ParsePattern decodes a YAML pattern definition and validates it.
func ParsePattern(data []byte) (*Pattern, error) {
	var p Pattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pattern: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the pattern for structural problems: missing ids,
// empty reaction lists, unknown condition kinds and dangling named
// transition targets. All failures are aggregated.
func (p *Pattern) Validate() error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, fmt.Errorf("pattern id is required"))
	}
	if len(p.Reactions) == 0 {
		errs = append(errs, fmt.Errorf("pattern has no reactions"))
	}
	if p.MaxInstances < 0 {
		errs = append(errs, fmt.Errorf("maxInstances must not be negative"))
	}

	for i, r := range p.Reactions {
		label := r.Label(i)
		if r.Condition == nil {
			errs = append(errs, fmt.Errorf("reaction %s has no condition", label))
		} else {
			errs = append(errs, p.validateCondition(label, r.Condition)...)
		}
		if r.Expiry != nil {
			if r.Expiry.Interval <= 0 {
				errs = append(errs, fmt.Errorf("reaction %s: expiry interval must be positive", label))
			}
			errs = append(errs, p.validateTransition(label, &r.Expiry.Transition)...)
		}
	}

	if len(errs) > 0 {
		return &PatternValidationError{PatternID: p.ID, Errors: errs}
	}
	return nil
}

func (p *Pattern) validateCondition(label string, c *Condition) []error {
	var errs []error
	switch c.Kind {
	case KindFilter:
		if c.Expr == "" {
			errs = append(errs, fmt.Errorf("reaction %s: filter condition has no expr", label))
		}
		if len(c.Operands) > 0 {
			errs = append(errs, fmt.Errorf("reaction %s: filter condition must not have operands", label))
		}
		if c.OnTrue != nil && c.OnTrue.Name == "" {
			errs = append(errs, fmt.Errorf("reaction %s: onTrue capture has no name", label))
		}
	case KindAnd, KindOr:
		if len(c.Operands) == 0 {
			errs = append(errs, fmt.Errorf("reaction %s: %s condition has no operands", label, c.Kind))
		}
		for _, op := range c.Operands {
			errs = append(errs, p.validateCondition(label, op)...)
		}
	default:
		errs = append(errs, fmt.Errorf("reaction %s: unknown condition kind %q", label, c.Kind))
	}
	if c.Transition != nil {
		errs = append(errs, p.validateTransition(label, c.Transition)...)
	}
	return errs
}

func (p *Pattern) validateTransition(label string, t *Transition) []error {
	var errs []error
	name := t.TargetName()
	if name != TransitionNext && name != TransitionTerminate {
		if _, ok := p.ReactionIndex(name); !ok {
			errs = append(errs, &TransitionTargetError{PatternID: p.ID, Target: name})
		}
	}
	if (t.Mode() == InputLocal || t.Mode() == InputReplay) && t.LocalName == "" {
		errs = append(errs, fmt.Errorf("reaction %s: %s input requires localName", label, t.Mode()))
	}
	return errs
}
