package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Well-known event types. Anything else is an application event and is
// only meaningful to pattern conditions.
const (
	// EventTypeControl marks administrative events handled by system control.
	EventTypeControl = "weft.control"
	// EventTypeControlStatus is the reply type for administrative operations.
	EventTypeControlStatus = "weft.control.status"
	// EventTypeMessage is the type of outbound events produced by transforms.
	EventTypeMessage = "weft.message"
	// EventTypeReplay is the type of synthesized events carrying a replayed
	// scope value (local/replay transition inputs).
	EventTypeReplay = "weft.replay"
)

// Source identifies the origin of an event: a participant, a sensor,
// an external service, or the engine itself.
type Source struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// EventData is the payload of an event. Title and Description are
// display hints; Content carries the structured values conditions and
// transforms operate on.
type EventData struct {
	Title       string         `json:"title,omitempty" yaml:"title,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Content     map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
}

// Event is the unit of work consumed from the inbound queue. An empty
// ThredID means the event is not addressed to an existing conversation
// and may start a new one.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Re      string    `json:"re,omitempty"` // id of the event this replies to
	ThredID string    `json:"thredId,omitempty"`
	Source  Source    `json:"source"`
	Time    time.Time `json:"time"`
	Data    EventData `json:"data"`
}

// NewEvent builds an application event with a fresh id and timestamp.
func NewEvent(evType string, src Source, content map[string]any) *Event {
	return &Event{
		ID:     uuid.NewString(),
		Type:   evType,
		Source: src,
		Time:   time.Now().UTC(),
		Data:   EventData{Content: content},
	}
}

// Map returns the event as a nested map keyed by its JSON field names,
// the shape expression evaluators bind against.
func (e *Event) Map() map[string]any {
	raw, err := json.Marshal(e)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// EventFromValue recovers an Event from a scope value. Whole-event
// captures are stored either as *Event (in process) or as the event's
// map form (after a persistence round trip).
func EventFromValue(v any) (*Event, bool) {
	switch val := v.(type) {
	case *Event:
		return val, true
	case Event:
		return &val, true
	case map[string]any:
		if _, hasType := val["type"]; !hasType {
			return nil, false
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, false
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			return nil, false
		}
		return &ev, true
	default:
		return nil, false
	}
}

// NewReplayEvent synthesizes an event around a bare scope value so it
// can be fed back through the match loop.
func NewReplayEvent(thredID, name string, v any) *Event {
	content, ok := v.(map[string]any)
	if !ok {
		content = map[string]any{"name": name, "value": v}
	}
	return &Event{
		ID:      uuid.NewString(),
		Type:    EventTypeReplay,
		ThredID: thredID,
		Source:  Source{ID: "weft"},
		Time:    time.Now().UTC(),
		Data:    EventData{Content: content},
	}
}

// Message is an outbound event addressed to concrete participant ids.
type Message struct {
	ID      string   `json:"id"`
	ThredID string   `json:"thredId"`
	Event   Event    `json:"event"`
	To      []string `json:"to"`
}
