package domain

import (
	"time"
)

// ThredMeta is display metadata refreshed from the last matched event.
type ThredMeta struct {
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	DisplayURI  string `json:"displayUri,omitempty"`
}

// Thred is the durable runtime record of one conversation: the current
// reaction of its pattern, the captured scope, the cumulative
// participant set and the armed expiry deadline. A record is mutated
// only by the thred driver, under the per-thredId lock.
type Thred struct {
	ID              string    `json:"id"`
	PatternID       string    `json:"patternId"`
	CurrentReaction int       `json:"currentReaction"`

	// Scope holds values captured by onTrue side effects, read by
	// predicate and template evaluation.
	Scope map[string]any `json:"scope,omitempty"`

	// Participants is cumulative over the thred's lifetime and is the
	// expansion base for "$thred" recipient directives.
	Participants []string `json:"participantIds,omitempty"`

	// CondState persists partial satisfaction of and-condition operands,
	// keyed by operand path within the current reaction. Cleared on
	// every committed transition.
	CondState map[string]bool `json:"condState,omitempty"`

	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	StartedAt time.Time `json:"startedAt"`
	Meta      ThredMeta `json:"meta"`
	Active    bool      `json:"isActive"`
}

// NewThred creates a record positioned at the pattern's first reaction,
// with its expiry armed when the first reaction declares one.
func NewThred(id string, p *Pattern, now time.Time) *Thred {
	t := &Thred{
		ID:              id,
		PatternID:       p.ID,
		CurrentReaction: 0,
		Scope:           make(map[string]any),
		CondState:       make(map[string]bool),
		StartedAt:       now,
		Active:          true,
	}
	t.ArmExpiry(p.ReactionAt(0), now)
	return t
}

// SetLocal stores a captured value in the thred scope.
func (t *Thred) SetLocal(name string, v any) {
	if t.Scope == nil {
		t.Scope = make(map[string]any)
	}
	t.Scope[name] = v
}

// Local reads a captured value from the thred scope.
func (t *Thred) Local(name string) (any, bool) {
	v, ok := t.Scope[name]
	return v, ok
}

// AddParticipants merges resolved participant ids into the cumulative
// set, preserving insertion order.
func (t *Thred) AddParticipants(ids []string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		seen := false
		for _, have := range t.Participants {
			if have == id {
				seen = true
				break
			}
		}
		if !seen {
			t.Participants = append(t.Participants, id)
		}
	}
}

// ArmExpiry sets or clears the expiry deadline for the reaction that
// just became current.
func (t *Thred) ArmExpiry(r *Reaction, now time.Time) {
	if r != nil && r.Expiry != nil {
		t.ExpiresAt = now.Add(r.Expiry.Duration())
		return
	}
	t.ExpiresAt = time.Time{}
}

// ExpiryDue reports whether the armed deadline has passed.
func (t *Thred) ExpiryDue(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ClearCondState drops all persisted and-operand flags. Called on every
// committed transition so re-entering a reaction starts fresh.
func (t *Thred) ClearCondState() {
	t.CondState = make(map[string]bool)
}

// ThredSnapshot is a read-only view of an active thred, used by the
// admin surfaces.
type ThredSnapshot struct {
	ID        string    `json:"id"`
	PatternID string    `json:"patternId"`
	Reaction  string    `json:"reaction"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Label     string    `json:"label,omitempty"`
}

// ThredLogRecord is one audit entry: a committed transition of a thred,
// appended through the log store before the transition is saved.
type ThredLogRecord struct {
	ThredID      string    `json:"thredId"`
	PatternID    string    `json:"patternId"`
	EventID      string    `json:"eventId"`
	FromReaction string    `json:"fromReaction"`
	ToReaction   string    `json:"toReaction"`
	Time         time.Time `json:"time"`
}
