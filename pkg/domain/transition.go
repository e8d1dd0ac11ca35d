package domain

// Reserved transition targets.
const (
	// TransitionNext advances to the following reaction in the pattern.
	TransitionNext = "$next"
	// TransitionTerminate ends the conversation.
	TransitionTerminate = "$terminate"
)

// InputMode selects what, if anything, is fed to the new reaction
// immediately after a transition.
type InputMode string

const (
	// InputDefault waits for the next external event.
	InputDefault InputMode = "default"
	// InputForward re-applies the triggering event against the new reaction.
	InputForward InputMode = "forward"
	// InputLocal re-applies a captured scope value, named by LocalName.
	InputLocal InputMode = "local"
	// InputReplay re-injects the last captured value for LocalName. Used
	// by expiry transitions, where there is no triggering event to forward.
	InputReplay InputMode = "replay"
)

// Transition is the rule for computing the next reaction and the next
// input once a reaction's condition has matched (or its expiry fired).
type Transition struct {
	Name      string    `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Input     InputMode `json:"input,omitempty" yaml:"input,omitempty" mapstructure:"input"`
	LocalName string    `json:"localName,omitempty" yaml:"localName,omitempty" mapstructure:"localName"`
}

// TargetName returns the transition target, defaulting to $next when
// the transition is absent or unnamed.
func (t *Transition) TargetName() string {
	if t == nil || t.Name == "" {
		return TransitionNext
	}
	return t.Name
}

// Mode returns the input mode, defaulting to InputDefault.
func (t *Transition) Mode() InputMode {
	if t == nil || t.Input == "" {
		return InputDefault
	}
	return t.Input
}
