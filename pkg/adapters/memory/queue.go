package memory

import (
	"context"
	"sync"

	"github.com/weftworks/weft/pkg/domain"
)

// Queue implements ports.EventSource over a buffered channel. Ack and
// Nack are bookkeeping only; an in-process queue has no redelivery.
type Queue struct {
	ch     chan *domain.Event
	mu     sync.Mutex
	nacked []string
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan *domain.Event, size)}
}

// Post enqueues an inbound event. It blocks when the buffer is full.
func (q *Queue) Post(ctx context.Context, ev *domain.Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop blocks until an event is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (*domain.Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op for the in-process queue.
func (q *Queue) Ack(_ context.Context, _ *domain.Event) error { return nil }

// Nack records the event id for inspection.
func (q *Queue) Nack(_ context.Context, ev *domain.Event, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, ev.ID)
	return nil
}

// Nacked returns the ids of nacked events.
func (q *Queue) Nacked() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.nacked))
	copy(out, q.nacked)
	return out
}

// Sink implements ports.MessageSink by collecting messages, optionally
// notifying a channel for tests awaiting dispatch.
type Sink struct {
	mu   sync.Mutex
	msgs []*domain.Message
	ch   chan *domain.Message
}

// NewSink creates a collecting sink. The notification channel is
// buffered; once full, Publish still succeeds without notifying.
func NewSink() *Sink {
	return &Sink{ch: make(chan *domain.Message, 64)}
}

// Publish stores the message.
func (s *Sink) Publish(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	select {
	case s.ch <- msg:
	default:
	}
	return nil
}

// Messages returns a snapshot of everything published so far.
func (s *Sink) Messages() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Wait returns the notification channel.
func (s *Sink) Wait() <-chan *domain.Message { return s.ch }
