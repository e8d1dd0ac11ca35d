package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
)

// controlHandler executes one administrative operation. The returned
// string is the human-readable success message for the status reply.
type controlHandler func(ctx context.Context, args *domain.ControlArgs, req *domain.Event) (string, error)

// SysControl executes administrative events. Handlers are registered in
// an explicit table validated for completeness against the known
// operation list at construction, so a missing handler fails at startup
// rather than on first use.
type SysControl struct {
	threds   *Threds
	sink     ports.MessageSink
	handlers map[string]controlHandler
	shutdown func(delay time.Duration)
	logger   *slog.Logger
	metrics  *Metrics
}

// SysControlOption configures system control.
type SysControlOption func(*SysControl)

// WithControlLogger sets the logger.
func WithControlLogger(logger *slog.Logger) SysControlOption {
	return func(s *SysControl) { s.logger = logger }
}

// WithControlMetrics sets the metrics sink.
func WithControlMetrics(m *Metrics) SysControlOption {
	return func(s *SysControl) { s.metrics = m }
}

// WithShutdown wires the engine's shutdown entry point.
func WithShutdown(fn func(delay time.Duration)) SysControlOption {
	return func(s *SysControl) { s.shutdown = fn }
}

// NewSysControl builds the operation table and verifies every known op
// has a handler.
func NewSysControl(threds *Threds, sink ports.MessageSink, opts ...SysControlOption) (*SysControl, error) {
	s := &SysControl{
		threds:   threds,
		sink:     sink,
		logger:   logging.NewNop(),
		metrics:  newTestMetrics(),
		shutdown: func(time.Duration) {},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handlers = map[string]controlHandler{
		domain.OpTerminateThred:     s.terminateThred,
		domain.OpTransitionThred:    s.transitionThred,
		domain.OpTimeoutReaction:    s.timeoutReaction,
		domain.OpResetPattern:       s.resetPattern,
		domain.OpTerminateAllThreds: s.terminateAllThreds,
		domain.OpShutdown:           s.shutdownOp,
	}
	for _, op := range domain.ControlOps() {
		if _, ok := s.handlers[op]; !ok {
			return nil, fmt.Errorf("no handler registered for operation %q", op)
		}
	}
	return s, nil
}

// Handle executes a control event and replies with a status event to
// the requester's source id. Handler failures are converted to failure
// replies, never propagated past this boundary.
func (s *SysControl) Handle(ctx context.Context, ev *domain.Event) error {
	args, err := domain.DecodeControlArgs(ev.Data.Content)
	if err != nil {
		return s.reply(ctx, ev, "unknown", domain.StatusFailure, err.Error())
	}

	h, ok := s.handlers[args.Op]
	if !ok {
		return s.reply(ctx, ev, args.Op, domain.StatusFailure,
			fmt.Sprintf("unknown operation %q", args.Op))
	}

	msg, err := h(ctx, args, ev)
	if err != nil {
		s.logger.Warn("control operation failed",
			"op", args.Op, "thred", args.ThredID, "err", err)
		return s.reply(ctx, ev, args.Op, domain.StatusFailure, failureMessage(args, err))
	}
	return s.reply(ctx, ev, args.Op, domain.StatusSuccess, msg)
}

// failureMessage keeps the wire-visible text stable for the common
// cases clients branch on.
func failureMessage(args *domain.ControlArgs, err error) string {
	if errors.Is(err, domain.ErrThredNotFound) {
		return fmt.Sprintf("thred %s does not exist", args.ThredID)
	}
	return err.Error()
}

func (s *SysControl) reply(ctx context.Context, req *domain.Event, op, status, message string) error {
	s.metrics.ControlOps.WithLabelValues(op, status).Inc()

	if req.Source.ID == "" {
		// Nothing to address the reply to.
		return nil
	}
	statusEv := domain.NewStatusEvent(req, op, status, message)
	msg := &domain.Message{
		ID:      statusEv.ID,
		ThredID: req.ThredID,
		Event:   *statusEv,
		To:      []string{req.Source.ID},
	}
	if err := s.sink.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish status reply for %s: %w", op, err)
	}
	return nil
}

func (s *SysControl) terminateThred(ctx context.Context, args *domain.ControlArgs, _ *domain.Event) (string, error) {
	if args.ThredID == "" {
		return "", fmt.Errorf("thredId is required")
	}
	if err := s.threds.Terminate(ctx, args.ThredID); err != nil {
		return "", err
	}
	return fmt.Sprintf("thred %s terminated", args.ThredID), nil
}

func (s *SysControl) transitionThred(ctx context.Context, args *domain.ControlArgs, _ *domain.Event) (string, error) {
	if args.ThredID == "" {
		return "", fmt.Errorf("thredId is required")
	}
	if args.Transition == nil {
		return "", fmt.Errorf("transition is required")
	}
	if err := s.threds.Transition(ctx, args.ThredID, args.Transition); err != nil {
		return "", err
	}
	return fmt.Sprintf("thred %s transitioned to %s", args.ThredID, args.Transition.TargetName()), nil
}

func (s *SysControl) timeoutReaction(ctx context.Context, args *domain.ControlArgs, _ *domain.Event) (string, error) {
	if args.ThredID == "" {
		return "", fmt.Errorf("thredId is required")
	}
	if err := s.threds.ExpireReaction(ctx, args.ThredID, args.ReactionName); err != nil {
		return "", err
	}
	return fmt.Sprintf("thred %s reaction expired", args.ThredID), nil
}

func (s *SysControl) resetPattern(ctx context.Context, args *domain.ControlArgs, _ *domain.Event) (string, error) {
	if args.PatternID == "" {
		return "", fmt.Errorf("patternId is required")
	}
	if err := s.threds.ResetPattern(ctx, args.PatternID); err != nil {
		return "", err
	}
	return fmt.Sprintf("pattern %s reset", args.PatternID), nil
}

func (s *SysControl) terminateAllThreds(ctx context.Context, _ *domain.ControlArgs, _ *domain.Event) (string, error) {
	n := s.threds.NumThreds()
	if err := s.threds.TerminateAll(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d threds terminated", n), nil
}

func (s *SysControl) shutdownOp(_ context.Context, args *domain.ControlArgs, _ *domain.Event) (string, error) {
	s.shutdown(args.DelayDuration())
	return fmt.Sprintf("shutdown initiated, drain delay %s", args.DelayDuration()), nil
}
