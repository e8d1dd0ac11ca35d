package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/weftworks/weft/pkg/domain"
)

// Source implements ports.EventSource on a Redis Stream consumer group.
// Unacknowledged entries stay in the pending list, giving at-least-once
// delivery across restarts.
type Source struct {
	client   *backend.Client
	stream   string
	group    string
	consumer string
	block    time.Duration

	mu      sync.Mutex
	pending map[string]string // event id -> stream entry id
}

// NewSource creates the consumer group when it does not exist yet.
func NewSource(ctx context.Context, client *backend.Client, stream, group, consumer string) (*Source, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return &Source{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    250 * time.Millisecond,
		pending:  make(map[string]string),
	}, nil
}

// Pop blocks until an event arrives or ctx is done.
func (s *Source) Pop(ctx context.Context) (*domain.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.client.XReadGroup(ctx, &backend.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    1,
			Block:    s.block,
		}).Result()
		if err != nil {
			if err == backend.Nil {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read from stream %s: %w", s.stream, err)
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}

		entry := res[0].Messages[0]
		raw, ok := entry.Values["event"].(string)
		if !ok {
			// Poison entry: ack and move on.
			_ = s.client.XAck(ctx, s.stream, s.group, entry.ID).Err()
			continue
		}

		var ev domain.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			_ = s.client.XAck(ctx, s.stream, s.group, entry.ID).Err()
			continue
		}

		s.mu.Lock()
		s.pending[ev.ID] = entry.ID
		s.mu.Unlock()
		return &ev, nil
	}
}

// Ack acknowledges the stream entry backing the event.
func (s *Source) Ack(ctx context.Context, ev *domain.Event) error {
	entryID, ok := s.take(ev.ID)
	if !ok {
		return nil
	}
	return s.client.XAck(ctx, s.stream, s.group, entryID).Err()
}

// Nack acknowledges the entry and parks a copy on the dead-letter
// stream with the failure reason.
func (s *Source) Nack(ctx context.Context, ev *domain.Event, reason string) error {
	entryID, ok := s.take(ev.ID)
	if !ok {
		return nil
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal nacked event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.XAck(ctx, s.stream, s.group, entryID)
	pipe.XAdd(ctx, &backend.XAddArgs{
		Stream: s.stream + ":dead",
		Values: map[string]any{"event": string(raw), "reason": reason},
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Source) take(eventID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.pending[eventID]
	if ok {
		delete(s.pending, eventID)
	}
	return entryID, ok
}

// Post adds an inbound event to the stream. Producers and the admin
// surface use this to feed the engine.
func (s *Source) Post(ctx context.Context, ev *domain.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.client.XAdd(ctx, &backend.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{"event": string(raw)},
	}).Err()
}

// Sink implements ports.MessageSink by appending to an outbound stream.
type Sink struct {
	client *backend.Client
	stream string
}

// NewSink creates a stream-backed sink.
func NewSink(client *backend.Client, stream string) *Sink {
	return &Sink{client: client, stream: stream}
}

// Publish appends the message to the outbound stream.
func (s *Sink) Publish(ctx context.Context, msg *domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", msg.ID, err)
	}
	return s.client.XAdd(ctx, &backend.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{"message": string(raw)},
	}).Err()
}
