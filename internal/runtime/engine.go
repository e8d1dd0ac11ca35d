package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
)

// Engine is the consumption loop: it pops events off the inbound queue,
// routes them to the thred manager or to system control, and acks or
// nacks the delivery. Events for different threds are handled
// concurrently; the per-thredId lock inside Threds serializes each
// conversation.
type Engine struct {
	source  ports.EventSource
	threds  *Threds
	control *SysControl
	logger  *slog.Logger
	metrics *Metrics

	drainTimeout time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	stopping   bool
	drainBound time.Duration
	wg         sync.WaitGroup
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithEngineMetrics sets the metrics sink.
func WithEngineMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithDrainTimeout bounds how long the engine waits for in-flight
// events when stopping without an explicit shutdown delay.
func WithDrainTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.drainTimeout = d }
}

// NewEngine wires the consumption loop. The control plane's shutdown
// operation is pointed back at this engine.
func NewEngine(source ports.EventSource, threds *Threds, control *SysControl, opts ...EngineOption) *Engine {
	e := &Engine{
		source:       source,
		threds:       threds,
		control:      control,
		logger:       logging.NewNop(),
		metrics:      newTestMetrics(),
		drainTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if control != nil {
		control.shutdown = e.Shutdown
	}
	return e
}

// Run consumes events until the context is cancelled or Shutdown is
// called. A queue failure is fatal: the engine stops rather than spin
// against a broken transport. Returns nil on orderly shutdown.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		cancel()
		return domain.ErrShuttingDown
	}
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	e.logger.Info("engine started")
	for {
		e.mu.Lock()
		stopped := e.stopping
		e.mu.Unlock()
		if stopped {
			e.drain()
			e.logger.Info("engine stopped")
			return nil
		}

		ev, err := e.source.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.drain()
				e.logger.Info("engine stopped")
				return nil
			}
			e.drain()
			return fmt.Errorf("queue consumption failed: %w", err)
		}

		e.wg.Add(1)
		go func(ev *domain.Event) {
			defer e.wg.Done()
			e.handle(ctx, ev)
		}(ev)
	}
}

// handle routes one delivery and settles it with the queue. Handler
// errors nack the event; the redelivery policy belongs to the
// transport.
func (e *Engine) handle(ctx context.Context, ev *domain.Event) {
	var err error
	if ev.Type == domain.EventTypeControl {
		e.metrics.EventsTotal.WithLabelValues("control").Inc()
		err = e.control.Handle(ctx, ev)
	} else {
		e.metrics.EventsTotal.WithLabelValues("pattern").Inc()
		err = e.threds.Handle(ctx, ev)
	}

	// Settle even when the consume context is gone; a cancelled ack
	// would turn every in-flight event into a redelivery.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err != nil {
		e.logger.Error("event handling failed",
			"event", ev.ID, "eventType", ev.Type, "thred", ev.ThredID, "err", err)
		if nerr := e.source.Nack(settleCtx, ev, err.Error()); nerr != nil {
			e.logger.Error("failed to nack event", "event", ev.ID, "err", nerr)
		}
		return
	}
	if aerr := e.source.Ack(settleCtx, ev); aerr != nil {
		e.logger.Error("failed to ack event", "event", ev.ID, "err", aerr)
	}
}

// Shutdown stops event consumption immediately and lets Run wait up to
// the given delay for in-flight events to drain before it returns.
// A non-positive delay falls back to the configured drain timeout.
// Returns immediately; safe to call more than once.
func (e *Engine) Shutdown(delay time.Duration) {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return
	}
	e.stopping = true
	if delay > 0 {
		e.drainBound = delay
	}
	cancel := e.cancel
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	e.logger.Info("shutdown requested", "drain", delay)
	cancel()
}

// drain waits for in-flight handlers, bounded by the shutdown delay
// when one was given, else by the drain timeout.
func (e *Engine) drain() {
	e.mu.Lock()
	bound := e.drainTimeout
	if e.drainBound > 0 {
		bound = e.drainBound
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(bound):
		e.logger.Warn("drain timeout, abandoning in-flight events",
			"timeout", bound)
	}
}
