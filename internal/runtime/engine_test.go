package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/weftworks/weft/pkg/adapters/expr"
	"github.com/weftworks/weft/pkg/adapters/memory"
	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type engineHarness struct {
	engine *Engine
	queue  *memory.Queue
	sink   *memory.Sink
	threds *Threds
	done   chan error
}

func startEngine(t *testing.T, patterns ...*domain.Pattern) *engineHarness {
	t.Helper()
	reg := registry.New()
	for _, p := range patterns {
		require.NoError(t, reg.Register(p))
	}
	queue := memory.NewQueue(64)
	sink := memory.NewSink()
	threds := NewThreds(reg, memory.NewStore(), sink, memory.NewResolver(nil), expr.New())
	control, err := NewSysControl(threds, sink)
	require.NoError(t, err)
	engine := NewEngine(queue, threds, control, WithDrainTimeout(2*time.Second))

	h := &engineHarness{engine: engine, queue: queue, sink: sink, threds: threds, done: make(chan error, 1)}
	go func() { h.done <- engine.Run(context.Background()) }()
	t.Cleanup(func() {
		engine.Shutdown(0)
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return h
}

func (h *engineHarness) awaitMessage(t *testing.T) *domain.Message {
	t.Helper()
	select {
	case msg := <-h.sink.Wait():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
		return nil
	}
}

func TestEngine_RoutesPatternEvents(t *testing.T) {
	p := &domain.Pattern{ID: "p", Reactions: []*domain.Reaction{
		{
			Name: "start",
			Condition: &domain.Condition{
				Kind: domain.KindFilter, Expr: "event.type == 'go'",
				Transform:  &domain.Transform{Title: "done"},
				Publish:    &domain.Publish{To: []string{"ops"}},
				Transition: &domain.Transition{Name: domain.TransitionTerminate},
			},
		},
	}}
	h := startEngine(t, p)

	require.NoError(t, h.queue.Post(context.Background(), typedEvent("go")))

	msg := h.awaitMessage(t)
	assert.Equal(t, "done", msg.Event.Data.Title)
	assert.Equal(t, []string{"ops"}, msg.To)
}

func TestEngine_RoutesControlEvents(t *testing.T) {
	h := startEngine(t, selfLoopPattern())
	ctx := context.Background()

	require.NoError(t, h.queue.Post(ctx, domain.NewEvent(
		domain.EventTypeControl,
		domain.Source{ID: "admin"},
		map[string]any{"op": domain.OpTerminateAllThreds},
	)))

	msg := h.awaitMessage(t)
	assert.Equal(t, domain.EventTypeControlStatus, msg.Event.Type)
	assert.Equal(t, []string{"admin"}, msg.To)
}

func TestEngine_NacksFailedEvents(t *testing.T) {
	h := startEngine(t, selfLoopPattern())
	ctx := context.Background()

	ev := typedEvent("tick")
	ev.ThredID = "ghost"
	require.NoError(t, h.queue.Post(ctx, ev))

	require.Eventually(t, func() bool {
		for _, id := range h.queue.Nacked() {
			if id == ev.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_ShutdownStopsConsumption(t *testing.T) {
	h := startEngine(t, selfLoopPattern())

	h.engine.Shutdown(0)
	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- nil // keep the cleanup path happy
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after shutdown")
	}

	// A second run on a stopped engine refuses to start.
	assert.ErrorIs(t, h.engine.Run(context.Background()), domain.ErrShuttingDown)
}

func TestEngine_ShutdownStopsNewConsumption(t *testing.T) {
	h := startEngine(t, selfLoopPattern())
	ctx := context.Background()

	h.engine.Shutdown(500 * time.Millisecond)

	// An event arriving after shutdown must stay on the queue.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, h.queue.Post(ctx, typedEvent("tick")))

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after shutdown")
	}

	select {
	case msg := <-h.sink.Wait():
		t.Fatalf("event consumed after shutdown, dispatched %q", msg.Event.Type)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Zero(t, h.threds.NumThreds())
}

func TestEngine_ShutdownViaControlEvent(t *testing.T) {
	h := startEngine(t, selfLoopPattern())
	ctx := context.Background()

	require.NoError(t, h.queue.Post(ctx, domain.NewEvent(
		domain.EventTypeControl,
		domain.Source{ID: "admin"},
		map[string]any{"op": domain.OpShutdown},
	)))

	// The status reply is published before consumption stops.
	msg := h.awaitMessage(t)
	assert.Equal(t, domain.EventTypeControlStatus, msg.Event.Type)

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after shutdown operation")
	}
}
