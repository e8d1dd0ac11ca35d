package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisAdapter "github.com/weftworks/weft/pkg/adapters/redis"
	"github.com/weftworks/weft/pkg/domain"
)

func TestSource_PostPopAck(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	source, err := redisAdapter.NewSource(ctx, client, "in", "grp", "c-1")
	require.NoError(t, err)

	ev := domain.NewEvent("order.placed", domain.Source{ID: "shop"}, map[string]any{"orderId": "o-1"})
	require.NoError(t, source.Post(ctx, ev))

	popCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	got, err := source.Pop(popCtx)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "o-1", got.Data.Content["orderId"])

	require.NoError(t, source.Ack(ctx, got))

	pending, err := client.XPending(ctx, "in", "grp").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestSource_CreateGroupIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := redisAdapter.NewSource(ctx, client, "in", "grp", "c-1")
	require.NoError(t, err)
	_, err = redisAdapter.NewSource(ctx, client, "in", "grp", "c-2")
	require.NoError(t, err)
}

func TestSource_PopHonorsContext(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	source, err := redisAdapter.NewSource(ctx, client, "in", "grp", "c-1")
	require.NoError(t, err)

	popCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = source.Pop(popCtx)
	assert.Error(t, err)
}

func TestSource_NackDeadLetters(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	source, err := redisAdapter.NewSource(ctx, client, "in", "grp", "c-1")
	require.NoError(t, err)

	ev := domain.NewEvent("order.placed", domain.Source{ID: "shop"}, nil)
	require.NoError(t, source.Post(ctx, ev))

	popCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	got, err := source.Pop(popCtx)
	require.NoError(t, err)

	require.NoError(t, source.Nack(ctx, got, "evaluation failed"))

	entries, err := client.XRange(ctx, "in:dead", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evaluation failed", entries[0].Values["reason"])

	var dead domain.Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &dead))
	assert.Equal(t, ev.ID, dead.ID)

	// Nacked entries leave the pending list.
	pending, err := client.XPending(ctx, "in", "grp").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestSink_Publish(t *testing.T) {
	client, _ := newTestClient(t)
	sink := redisAdapter.NewSink(client, "out")
	ctx := context.Background()

	msg := &domain.Message{
		ID:      "m-1",
		ThredID: "t-1",
		To:      []string{"alice"},
		Event:   *domain.NewEvent(domain.EventTypeMessage, domain.Source{ID: "weft"}, nil),
	}
	require.NoError(t, sink.Publish(ctx, msg))

	entries, err := client.XRange(ctx, "out", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got domain.Message
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["message"].(string)), &got))
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, []string{"alice"}, got.To)
}
