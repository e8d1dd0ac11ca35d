package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Administrative operation names carried in control events.
const (
	OpTimeoutReaction    = "timeoutReaction"
	OpTransitionThred    = "transitionThred"
	OpTerminateThred     = "terminateThred"
	OpResetPattern       = "resetPattern"
	OpTerminateAllThreds = "terminateAllThreds"
	OpShutdown           = "shutdown"
)

// ControlOps lists every known administrative operation. System control
// validates its handler table against this list at construction.
func ControlOps() []string {
	return []string{
		OpTimeoutReaction,
		OpTransitionThred,
		OpTerminateThred,
		OpResetPattern,
		OpTerminateAllThreds,
		OpShutdown,
	}
}

// ControlArgs is the wire-stable argument shape of a control event,
// decoded from the event's content.
type ControlArgs struct {
	Op           string      `mapstructure:"op"`
	ThredID      string      `mapstructure:"thredId"`
	ReactionName string      `mapstructure:"reactionName"`
	Transition   *Transition `mapstructure:"transition"`
	PatternID    string      `mapstructure:"patternId"`
	Delay        int64       `mapstructure:"delay"` // milliseconds
}

// DelayDuration returns the shutdown drain delay.
func (a *ControlArgs) DelayDuration() time.Duration {
	return time.Duration(a.Delay) * time.Millisecond
}

// DecodeControlArgs extracts operation arguments from a control event's
// content map.
func DecodeControlArgs(content map[string]any) (*ControlArgs, error) {
	var args ControlArgs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(content); err != nil {
		return nil, fmt.Errorf("malformed control args: %w", err)
	}
	if args.Op == "" {
		return nil, fmt.Errorf("control event is missing the op field")
	}
	return &args, nil
}

// Operation statuses reported back to the requester.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// NewStatusEvent builds the status reply for an administrative request.
// The caller addresses it to the requester's source id.
func NewStatusEvent(req *Event, op, status, message string) *Event {
	return &Event{
		ID:      uuid.NewString(),
		Type:    EventTypeControlStatus,
		Re:      req.ID,
		ThredID: req.ThredID,
		Source:  Source{ID: "weft"},
		Time:    time.Now().UTC(),
		Data: EventData{
			Title: op,
			Content: map[string]any{
				"operation": op,
				"status":    status,
				"message":   message,
			},
		},
	}
}
