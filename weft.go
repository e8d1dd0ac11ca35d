package weft

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/runtime"
	"github.com/weftworks/weft/pkg/adapters/expr"
	"github.com/weftworks/weft/pkg/adapters/memory"
	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
	"github.com/weftworks/weft/pkg/registry"
)

// Engine is the high-level entry point for the library. It wraps the
// internal runtime and provides a simplified API for consumers. By
// default everything runs in process: in-memory queue, store and
// resolver, with the built-in expression evaluator.
type Engine struct {
	registry *registry.Registry
	threds   *runtime.Threds
	control  *runtime.SysControl
	runtime  *runtime.Engine

	source    ports.EventSource
	sink      ports.MessageSink
	store     ports.ThredStore
	resolver  ports.AddressResolver
	evaluator ports.Evaluator
	loader    ports.PatternLoader
	locker    ports.DistributedLocker
	logs      ports.LogStore

	patterns   []*domain.Pattern
	promReg    *prometheus.Registry
	registerer prometheus.Registerer
	logger     *slog.Logger
	now        func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithEventSource injects the inbound queue transport.
func WithEventSource(src ports.EventSource) Option {
	return func(e *Engine) { e.source = src }
}

// WithMessageSink injects the outbound transport.
func WithMessageSink(sink ports.MessageSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithThredStore injects the thred persistence layer.
func WithThredStore(store ports.ThredStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithResolver injects the address resolver used to expand recipient
// directives into participant ids.
func WithResolver(r ports.AddressResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithEvaluator injects a custom condition evaluator.
func WithEvaluator(ev ports.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// WithPatternLoader injects the loader used at startup and by the
// resetPattern operation.
func WithPatternLoader(l ports.PatternLoader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithPatterns registers patterns directly, bypassing any loader.
func WithPatterns(patterns ...*domain.Pattern) Option {
	return func(e *Engine) { e.patterns = append(e.patterns, patterns...) }
}

// WithDistributedLocker layers a cross-replica lock over the
// in-process per-thred one.
func WithDistributedLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLogStore enables the transition audit log.
func WithLogStore(logs ports.LogStore) Option {
	return func(e *Engine) { e.logs = logs }
}

// WithMetricsRegisterer registers engine metrics with the given
// registerer instead of a private registry.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = reg }
}

// WithClock overrides the engine clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New assembles an engine. Patterns come from WithPatterns and, when a
// loader is configured, from the loader; every pattern is validated at
// registration and a single invalid one fails construction.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.source == nil {
		e.source = memory.NewQueue(64)
	}
	if e.sink == nil {
		e.sink = memory.NewSink()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.resolver == nil {
		e.resolver = memory.NewResolver(nil)
	}
	if e.evaluator == nil {
		e.evaluator = expr.New()
	}
	if e.registerer == nil {
		e.promReg = prometheus.NewRegistry()
		e.registerer = e.promReg
	}

	e.registry = registry.New()
	if e.loader != nil {
		loaded, err := e.loader.LoadPatterns(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load patterns: %w", err)
		}
		e.patterns = append(e.patterns, loaded...)
	}
	for _, p := range e.patterns {
		if err := e.registry.Register(p); err != nil {
			return nil, err
		}
	}

	metrics := runtime.NewMetrics(e.registerer)

	thredOpts := []runtime.ThredsOption{
		runtime.WithLogger(e.logger),
		runtime.WithMetrics(metrics),
		runtime.WithNow(e.now),
	}
	if e.locker != nil {
		thredOpts = append(thredOpts, runtime.WithLocker(e.locker))
	}
	if e.loader != nil {
		thredOpts = append(thredOpts, runtime.WithLoader(e.loader))
	}
	if e.logs != nil {
		thredOpts = append(thredOpts, runtime.WithLogStore(e.logs))
	}
	e.threds = runtime.NewThreds(e.registry, e.store, e.sink, e.resolver, e.evaluator, thredOpts...)

	control, err := runtime.NewSysControl(e.threds, e.sink,
		runtime.WithControlLogger(e.logger),
		runtime.WithControlMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	e.control = control

	e.runtime = runtime.NewEngine(e.source, e.threds, e.control,
		runtime.WithEngineLogger(e.logger),
		runtime.WithEngineMetrics(metrics),
	)
	return e, nil
}

// Run consumes inbound events until ctx is cancelled or Shutdown is
// called. It blocks; run it from its own goroutine when embedding.
func (e *Engine) Run(ctx context.Context) error {
	return e.runtime.Run(ctx)
}

// Shutdown stops consumption immediately and waits up to delay for
// in-flight events to drain.
func (e *Engine) Shutdown(delay time.Duration) {
	e.runtime.Shutdown(delay)
}

// poster is implemented by transports that accept local event
// injection, like the in-memory queue and the stream source.
type poster interface {
	Post(ctx context.Context, ev *domain.Event) error
}

// Post injects an event into the inbound queue. Only available when
// the configured source supports local injection.
func (e *Engine) Post(ctx context.Context, ev *domain.Event) error {
	p, ok := e.source.(poster)
	if !ok {
		return fmt.Errorf("event source %T does not accept local injection", e.source)
	}
	return p.Post(ctx, ev)
}

// NumThreds returns the number of active threds.
func (e *Engine) NumThreds() int {
	return e.threds.NumThreds()
}

// Snapshot returns a read-only view of the active threds.
func (e *Engine) Snapshot() []domain.ThredSnapshot {
	return e.threds.Snapshot()
}

// Terminate administratively ends a thred.
func (e *Engine) Terminate(ctx context.Context, thredID string) error {
	return e.threds.Terminate(ctx, thredID)
}

// Registry exposes the pattern registry, for inspection surfaces.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Gatherer returns the metrics registry when the engine owns one, or
// nil when metrics were registered externally.
func (e *Engine) Gatherer() prometheus.Gatherer {
	if e.promReg == nil {
		return nil
	}
	return e.promReg
}
