package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrThredNotFound is returned when a thred id has no active record.
var ErrThredNotFound = errors.New("thred not found")

// ErrPatternNotFound is returned when a pattern id is not registered.
var ErrPatternNotFound = errors.New("pattern not found")

// ErrInstanceLimit is returned when creating a new thred would exceed a
// pattern's maxInstances or violate its instanceInterval.
var ErrInstanceLimit = errors.New("pattern instance limit reached")

// ErrShuttingDown is returned for work submitted after shutdown began.
var ErrShuttingDown = errors.New("engine is shutting down")

// TransitionTargetError is a malformed-pattern failure: a named
// transition points at a reaction that does not exist.
type TransitionTargetError struct {
	PatternID string
	Target    string
}

func (e *TransitionTargetError) Error() string {
	return fmt.Sprintf("pattern %q: transition target %q not found", e.PatternID, e.Target)
}

// PatternValidationError aggregates everything wrong with a pattern
// definition so a load or reset fails loudly with the full picture.
type PatternValidationError struct {
	PatternID string
	Errors    []error
}

func (e *PatternValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("pattern %q is invalid: %s", e.PatternID, strings.Join(msgs, "; "))
}

func (e *PatternValidationError) Unwrap() []error { return e.Errors }
