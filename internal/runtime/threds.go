package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
	"github.com/weftworks/weft/pkg/registry"
)

// lockEntry holds one thred's mutex and its waiter reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// thredHandle pairs an active record with the pattern revision it was
// created against. resetPattern swaps the registry, not the handle.
// admitted marks handles holding an instance-window slot, which retire
// must give back.
type thredHandle struct {
	rec      *domain.Thred
	pattern  *domain.Pattern
	admitted bool
}

// instanceWindow tracks per-pattern creation accounting for the
// maxInstances and instanceInterval limits.
type instanceWindow struct {
	count int
	last  time.Time
}

// Threds owns the set of active thred records and is the only path to
// them. All mutation happens under a per-thredId lock: events for one
// conversation are strictly serialized while different conversations
// proceed in parallel. Lock entries are reference counted and garbage
// collected when the last waiter leaves.
type Threds struct {
	registry  *registry.Registry
	store     ports.ThredStore
	sink      ports.MessageSink
	resolver  ports.AddressResolver
	evaluator ports.Evaluator
	loader    ports.PatternLoader
	locker    ports.DistributedLocker

	driver  *driver
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
	lockTTL time.Duration

	mu        sync.Mutex
	locks     map[string]*lockEntry
	active    map[string]*thredHandle
	instances map[string]*instanceWindow
}

// ThredsOption configures the manager.
type ThredsOption func(*Threds)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ThredsOption {
	return func(t *Threds) { t.logger = logger }
}

// WithLocker layers a distributed lock over the in-process one, for
// multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) ThredsOption {
	return func(t *Threds) { t.locker = locker }
}

// WithLoader enables resetPattern reloads.
func WithLoader(loader ports.PatternLoader) ThredsOption {
	return func(t *Threds) { t.loader = loader }
}

// WithLogStore installs the built-in audit effect.
func WithLogStore(logs ports.LogStore) ThredsOption {
	return func(t *Threds) {
		t.driver.effects = append(t.driver.effects, NewAuditEffect(logs))
	}
}

// WithEffects appends additional transition effects.
func WithEffects(effects ...Effect) ThredsOption {
	return func(t *Threds) {
		t.driver.effects = append(t.driver.effects, effects...)
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) ThredsOption {
	return func(t *Threds) {
		t.metrics = m
		t.driver.metrics = m
	}
}

// WithNow overrides the clock, for expiry and interval tests.
func WithNow(now func() time.Time) ThredsOption {
	return func(t *Threds) {
		t.now = now
		t.driver.now = now
	}
}

// NewThreds creates the collection manager.
func NewThreds(reg *registry.Registry, store ports.ThredStore, sink ports.MessageSink, resolver ports.AddressResolver, evaluator ports.Evaluator, opts ...ThredsOption) *Threds {
	t := &Threds{
		registry:  reg,
		store:     store,
		sink:      sink,
		resolver:  resolver,
		evaluator: evaluator,
		logger:    logging.NewNop(),
		metrics:   newTestMetrics(),
		now:       time.Now,
		lockTTL:   30 * time.Second,
		locks:     make(map[string]*lockEntry),
		active:    make(map[string]*thredHandle),
		instances: make(map[string]*instanceWindow),
	}
	t.driver = &driver{
		evaluator: evaluator,
		resolver:  resolver,
		logger:    t.logger,
		metrics:   t.metrics,
		now:       t.now,
	}
	for _, opt := range opts {
		opt(t)
	}
	// Options may have replaced the logger/clock after driver creation.
	t.driver.logger = t.logger
	t.driver.conditions = &conditionEvaluator{eval: evaluator, logger: t.logger}
	return t
}

// acquire gets or creates a lock entry and increments its refcount.
func (t *Threds) acquire(id string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.locks[id]
	if !ok {
		entry = &lockEntry{}
		t.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the refcount and drops the entry at zero.
func (t *Threds) release(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(t.locks, id)
	}
}

// WithThredStore runs fn while holding the lock for the thred. The lock
// is held across the whole consider cascade, including persistence
// calls, and released on every exit path.
func (t *Threds) WithThredStore(ctx context.Context, id string, fn func(ctx context.Context, h *thredHandle) error) error {
	entry := t.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		t.release(id)
	}()

	if t.locker != nil {
		unlock, err := t.locker.Lock(ctx, id, t.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock for %s: %w", id, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				t.logger.Warn("failed to release distributed lock, TTL will expire it",
					"thred", id, "err", err)
			}
		}()
	}

	h, err := t.lookup(ctx, id)
	if err != nil {
		return err
	}
	return fn(ctx, h)
}

// lookup finds the handle in the active map, falling back to the store
// for records that survived a restart. Terminated records are reported
// as not found.
func (t *Threds) lookup(ctx context.Context, id string) (*thredHandle, error) {
	t.mu.Lock()
	h, ok := t.active[id]
	t.mu.Unlock()
	if ok {
		return h, nil
	}

	rec, err := t.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, domain.ErrThredNotFound
	}
	p, ok := t.registry.Get(rec.PatternID)
	if !ok {
		return nil, fmt.Errorf("thred %s: %w: %s", id, domain.ErrPatternNotFound, rec.PatternID)
	}

	h = &thredHandle{rec: rec, pattern: p, admitted: true}
	t.restoreInstance(rec.PatternID)
	t.mu.Lock()
	t.active[id] = h
	t.mu.Unlock()
	t.metrics.ActiveThreds.Inc()
	return h, nil
}

// Handle routes one pattern event: to its thred when addressed, or
// through first-reaction matching of every registered pattern when not.
func (t *Threds) Handle(ctx context.Context, ev *domain.Event) error {
	if ev.ThredID == "" {
		return t.startThred(ctx, ev)
	}
	return t.WithThredStore(ctx, ev.ThredID, func(ctx context.Context, h *thredHandle) error {
		res, err := t.driver.consider(ctx, ev, h.rec, h.pattern)
		if err != nil {
			return err
		}
		return t.finish(ctx, h, res)
	})
}

// startThred tries the event against every pattern's first reaction in
// registration order. The first full match creates a new thred, subject
// to the pattern's instance limits. The trial runs with staged effects:
// a creation the instance window refuses leaves no audit records
// behind.
func (t *Threds) startThred(ctx context.Context, ev *domain.Event) error {
	for _, p := range t.registry.All() {
		rec := domain.NewThred(uuid.NewString(), p, t.now())
		staged := &stagedEffects{}
		res, err := t.driver.withEffects([]Effect{staged}).consider(ctx, ev, rec, p)
		if err != nil {
			t.logger.Warn("pattern evaluation failed for unaddressed event",
				"pattern", p.ID, "event", ev.ID, "err", err)
			continue
		}
		if res.Commits == 0 {
			continue
		}

		if err := t.admitInstance(p); err != nil {
			return fmt.Errorf("pattern %s refused event %s: %w", p.ID, ev.ID, err)
		}
		if err := staged.replay(ctx, t.driver.effects); err != nil {
			t.releaseInstance(p.ID)
			return fmt.Errorf("pattern %s effects failed for event %s: %w", p.ID, ev.ID, err)
		}

		h := &thredHandle{rec: rec, pattern: p, admitted: true}
		if rec.Active {
			t.mu.Lock()
			t.active[rec.ID] = h
			t.mu.Unlock()
			t.metrics.ActiveThreds.Inc()
		}
		t.logger.Info("thred started",
			"thred", rec.ID, "pattern", p.ID, "event", ev.ID)
		return t.finish(ctx, h, res)
	}

	t.logger.Debug("event matched no pattern", "event", ev.ID, "eventType", ev.Type)
	return nil
}

// admitInstance enforces maxInstances and instanceInterval for a new
// thred of the pattern, and records the creation on success.
func (t *Threds) admitInstance(p *domain.Pattern) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.instances[p.ID]
	if !ok {
		w = &instanceWindow{}
		t.instances[p.ID] = w
	}
	if p.MaxInstances > 0 && w.count >= p.MaxInstances {
		return fmt.Errorf("%w: %d active instances", domain.ErrInstanceLimit, w.count)
	}
	if p.InstanceInterval > 0 && !w.last.IsZero() && t.now().Sub(w.last) < p.Interval() {
		return fmt.Errorf("%w: created %s ago, interval is %s",
			domain.ErrInstanceLimit, t.now().Sub(w.last), p.Interval())
	}
	w.count++
	w.last = t.now()
	return nil
}

// releaseInstance returns a slot taken by admitInstance when the
// creation is abandoned before the thred is registered.
func (t *Threds) releaseInstance(patternID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.instances[patternID]; ok && w.count > 0 {
		w.count--
	}
}

// restoreInstance counts a record restored from the store against its
// pattern's instance window, so limits hold across restarts. The
// creation time is not touched; only new creations move the interval
// window.
func (t *Threds) restoreInstance(patternID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.instances[patternID]
	if !ok {
		w = &instanceWindow{}
		t.instances[patternID] = w
	}
	w.count++
}

// finish persists the record, retires it when terminated and dispatches
// the cascade's messages. Dispatch is best effort: a publish failure is
// logged but never rolls back the committed transition.
func (t *Threds) finish(ctx context.Context, h *thredHandle, res considerResult) error {
	if err := t.store.Save(ctx, h.rec); err != nil {
		return fmt.Errorf("failed to save thred %s: %w", h.rec.ID, err)
	}
	if res.Terminated {
		t.retire(h)
	}
	t.dispatch(ctx, res.Messages)
	return nil
}

// retire removes a terminated thred from the active set and, for
// handles holding an instance slot, gives the slot back.
func (t *Threds) retire(h *thredHandle) {
	t.mu.Lock()
	if _, ok := t.active[h.rec.ID]; ok {
		delete(t.active, h.rec.ID)
		t.metrics.ActiveThreds.Dec()
	}
	if h.admitted {
		h.admitted = false
		if w, ok := t.instances[h.rec.PatternID]; ok && w.count > 0 {
			w.count--
		}
	}
	t.mu.Unlock()
	t.logger.Info("thred terminated", "thred", h.rec.ID, "pattern", h.rec.PatternID)
}

// dispatch hands messages to the outbound sink.
func (t *Threds) dispatch(ctx context.Context, msgs []*domain.Message) {
	for _, msg := range msgs {
		if err := t.sink.Publish(ctx, msg); err != nil {
			t.metrics.DispatchErrors.Inc()
			t.logger.Error("failed to publish message",
				"message", msg.ID, "thred", msg.ThredID, "err", err)
			continue
		}
		t.metrics.Dispatches.Inc()
	}
}

// Terminate administratively ends a thred.
func (t *Threds) Terminate(ctx context.Context, id string) error {
	return t.WithThredStore(ctx, id, func(ctx context.Context, h *thredHandle) error {
		h.rec.Active = false
		h.rec.ArmExpiry(nil, t.now())
		if err := t.store.Save(ctx, h.rec); err != nil {
			return fmt.Errorf("failed to save thred %s: %w", id, err)
		}
		t.metrics.Terminations.Inc()
		t.retire(h)
		return nil
	})
}

// TerminateAll ends every active thred.
func (t *Threds) TerminateAll(ctx context.Context) error {
	t.mu.Lock()
	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := t.Terminate(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Transition applies an explicit transition to a thred, bypassing
// condition evaluation.
func (t *Threds) Transition(ctx context.Context, id string, trans *domain.Transition) error {
	if trans == nil {
		return fmt.Errorf("transition is required")
	}
	return t.WithThredStore(ctx, id, func(ctx context.Context, h *thredHandle) error {
		res, err := t.driver.transition(ctx, h.rec, h.pattern, trans)
		if err != nil {
			return err
		}
		return t.finish(ctx, h, res)
	})
}

// ExpireReaction forces the current reaction's expiry transition. When
// reactionName is given it must match the current reaction, guarding
// against racing a concurrent transition.
func (t *Threds) ExpireReaction(ctx context.Context, id, reactionName string) error {
	return t.WithThredStore(ctx, id, func(ctx context.Context, h *thredHandle) error {
		if reactionName != "" {
			cur := h.pattern.ReactionAt(h.rec.CurrentReaction)
			if cur == nil || cur.Label(h.rec.CurrentReaction) != reactionName {
				return fmt.Errorf("thred %s is not at reaction %q", id, reactionName)
			}
		}
		res, err := t.driver.expire(ctx, h.rec, h.pattern)
		if err != nil {
			return err
		}
		return t.finish(ctx, h, res)
	})
}

// ResetPattern reloads the pattern definition and swaps it for new
// instances. In-flight threds keep the revision they started with.
func (t *Threds) ResetPattern(ctx context.Context, patternID string) error {
	if t.loader == nil {
		return fmt.Errorf("no pattern loader configured")
	}
	p, err := t.loader.LoadPattern(ctx, patternID)
	if err != nil {
		return fmt.Errorf("failed to reload pattern %s: %w", patternID, err)
	}
	if err := t.registry.Reset(p); err != nil {
		return err
	}
	t.logger.Info("pattern reset", "pattern", patternID)
	return nil
}

// AddParticipants merges participant ids into a thred's cumulative set.
func (t *Threds) AddParticipants(ctx context.Context, id string, ids []string) error {
	return t.WithThredStore(ctx, id, func(ctx context.Context, h *thredHandle) error {
		h.rec.AddParticipants(ids)
		return t.store.Save(ctx, h.rec)
	})
}

// NumThreds returns the number of active threds.
func (t *Threds) NumThreds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Snapshot returns a read-only view of the active threds.
func (t *Threds) Snapshot() []domain.ThredSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ThredSnapshot, 0, len(t.active))
	for _, h := range t.active {
		cur := h.pattern.ReactionAt(h.rec.CurrentReaction)
		snap := domain.ThredSnapshot{
			ID:        h.rec.ID,
			PatternID: h.rec.PatternID,
			StartedAt: h.rec.StartedAt,
			ExpiresAt: h.rec.ExpiresAt,
			Label:     h.rec.Meta.Label,
		}
		if cur != nil {
			snap.Reaction = cur.Label(h.rec.CurrentReaction)
		}
		out = append(out, snap)
	}
	return out
}
