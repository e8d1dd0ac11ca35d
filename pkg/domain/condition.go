package domain

// ConditionKind discriminates the condition variants.
type ConditionKind string

const (
	// KindFilter is a single predicate expression over {event, scope}.
	KindFilter ConditionKind = "filter"
	// KindAnd matches once all operands have matched, possibly across
	// several events; partial satisfaction persists on the thred record.
	KindAnd ConditionKind = "and"
	// KindOr matches on the first operand to match, in declaration order.
	KindOr ConditionKind = "or"
)

// Capture records a value into the thred scope when a filter matches.
// An empty Expr captures the triggering event itself.
type Capture struct {
	Name string `json:"name" yaml:"name"`
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// Transform describes the outbound message produced on a match. String
// values in Content that contain template markers are rendered with
// {event, scope} bound before dispatch.
type Transform struct {
	Title   string         `json:"title,omitempty" yaml:"title,omitempty"`
	Content map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
}

// DirectiveThred is the thred-scoped recipient directive: it expands to
// every participant the conversation has accumulated so far.
const DirectiveThred = "$thred"

// Publish lists the recipient directives of a transform. Directives are
// symbolic (groups, "$thred") and are expanded by the address resolver.
type Publish struct {
	To []string `json:"to" yaml:"to"`
}

// Condition is the tagged union guarding a reaction. Kind selects which
// fields are meaningful: Expr/OnTrue for filters, Operands for and/or.
// Transform, Publish and Transition are shared by all kinds; for or
// conditions an operand's own values override the or-level ones.
type Condition struct {
	Kind ConditionKind `json:"kind" yaml:"kind"`

	// Filter fields.
	Expr   string   `json:"expr,omitempty" yaml:"expr,omitempty"`
	OnTrue *Capture `json:"onTrue,omitempty" yaml:"onTrue,omitempty"`

	// Composite fields.
	Operands []*Condition `json:"operands,omitempty" yaml:"operands,omitempty"`

	// Shared match consequences.
	Transform  *Transform  `json:"transform,omitempty" yaml:"transform,omitempty"`
	Publish    *Publish    `json:"publish,omitempty" yaml:"publish,omitempty"`
	Transition *Transition `json:"transition,omitempty" yaml:"transition,omitempty"`
}
