package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/domain"
)

func TestNewEvent(t *testing.T) {
	ev := domain.NewEvent("order.placed", domain.Source{ID: "shop"}, map[string]any{"orderId": "o-1"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "order.placed", ev.Type)
	assert.Equal(t, "shop", ev.Source.ID)
	assert.False(t, ev.Time.IsZero())
	assert.Equal(t, "o-1", ev.Data.Content["orderId"])
}

func TestEventMap(t *testing.T) {
	ev := domain.NewEvent("order.placed", domain.Source{ID: "shop"}, map[string]any{"amount": 42})

	m := ev.Map()
	assert.Equal(t, "order.placed", m["type"])
	data := m["data"].(map[string]any)
	content := data["content"].(map[string]any)
	// JSON round trip turns numbers into float64.
	assert.Equal(t, float64(42), content["amount"])
}

func TestEventFromValue(t *testing.T) {
	ev := domain.NewEvent("order.placed", domain.Source{ID: "shop"}, nil)

	t.Run("pointer", func(t *testing.T) {
		got, ok := domain.EventFromValue(ev)
		require.True(t, ok)
		assert.Same(t, ev, got)
	})

	t.Run("value", func(t *testing.T) {
		got, ok := domain.EventFromValue(*ev)
		require.True(t, ok)
		assert.Equal(t, ev.ID, got.ID)
	})

	t.Run("map after persistence round trip", func(t *testing.T) {
		raw, err := json.Marshal(ev)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))

		got, ok := domain.EventFromValue(m)
		require.True(t, ok)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ev.Type, got.Type)
	})

	t.Run("plain values are not events", func(t *testing.T) {
		_, ok := domain.EventFromValue("just a string")
		assert.False(t, ok)
		_, ok = domain.EventFromValue(map[string]any{"foo": "bar"})
		assert.False(t, ok)
	})
}

func TestNewReplayEvent(t *testing.T) {
	t.Run("map content is carried as-is", func(t *testing.T) {
		ev := domain.NewReplayEvent("t-1", "order", map[string]any{"orderId": "o-1"})
		assert.Equal(t, domain.EventTypeReplay, ev.Type)
		assert.Equal(t, "t-1", ev.ThredID)
		assert.Equal(t, "o-1", ev.Data.Content["orderId"])
	})

	t.Run("scalar is wrapped", func(t *testing.T) {
		ev := domain.NewReplayEvent("t-1", "count", 3)
		assert.Equal(t, "count", ev.Data.Content["name"])
		assert.Equal(t, 3, ev.Data.Content["value"])
	})
}
