package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/adapters/memory"
	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports/tests"
)

func TestStore_Contract(t *testing.T) {
	tests.RunThredStoreContract(t, memory.NewStore())
}

func TestStore_CopiesOnSave(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	p := &domain.Pattern{ID: "p", Reactions: []*domain.Reaction{
		{Name: "a", Condition: &domain.Condition{Kind: domain.KindFilter, Expr: "true"}},
	}}
	rec := domain.NewThred("t-1", p, time.Now())
	require.NoError(t, store.Save(ctx, rec))

	// Mutations after Save must not leak into the stored copy.
	rec.CurrentReaction = 7
	rec.SetLocal("x", "y")

	loaded, err := store.Load(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.CurrentReaction)
	_, ok := loaded.Local("x")
	assert.False(t, ok)
}

func TestStore_AuditLog(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &domain.ThredLogRecord{
		ThredID: "t-1", PatternID: "p", FromReaction: "a", ToReaction: "b",
	}))
	require.NoError(t, store.Append(ctx, &domain.ThredLogRecord{
		ThredID: "t-1", PatternID: "p", FromReaction: "b", ToReaction: "$terminate",
	}))

	recs := store.LogRecords()
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].FromReaction)
	assert.Equal(t, "$terminate", recs[1].ToReaction)
}

func TestQueue(t *testing.T) {
	q := memory.NewQueue(4)
	ctx := context.Background()

	ev := domain.NewEvent("x", domain.Source{ID: "s"}, nil)
	require.NoError(t, q.Post(ctx, ev))

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)

	require.NoError(t, q.Ack(ctx, got))
	require.NoError(t, q.Nack(ctx, got, "boom"))
	assert.Equal(t, []string{ev.ID}, q.Nacked())
}

func TestQueue_PopHonorsContext(t *testing.T) {
	q := memory.NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSink(t *testing.T) {
	sink := memory.NewSink()
	ctx := context.Background()

	msg := &domain.Message{ID: "m-1", ThredID: "t-1", To: []string{"alice"}}
	require.NoError(t, sink.Publish(ctx, msg))

	select {
	case got := <-sink.Wait():
		assert.Equal(t, "m-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("no dispatch notification")
	}
	require.Len(t, sink.Messages(), 1)
}

func TestLoader(t *testing.T) {
	p := &domain.Pattern{ID: "p", Reactions: []*domain.Reaction{
		{Name: "a", Condition: &domain.Condition{Kind: domain.KindFilter, Expr: "true"}},
	}}
	loader := memory.NewLoader(p)
	ctx := context.Background()

	all, err := loader.LoadPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = loader.LoadPattern(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPatternNotFound)

	revised := &domain.Pattern{ID: "p", Name: "v2", Reactions: p.Reactions}
	loader.Swap(revised)
	got, err := loader.LoadPattern(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
}

func TestResolver(t *testing.T) {
	r := memory.NewResolver(map[string][]string{
		"warehouse": {"picker-1", "picker-2"},
	})
	ctx := context.Background()

	th := &domain.Thred{ID: "t-1", Participants: []string{"alice", "bob"}}

	ids, err := r.ResolveParticipants(ctx, []string{"warehouse", domain.DirectiveThred, "carol"}, th)
	require.NoError(t, err)
	assert.Equal(t, []string{"picker-1", "picker-2", "alice", "bob", "carol"}, ids)
}
