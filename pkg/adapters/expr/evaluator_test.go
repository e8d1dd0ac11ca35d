package expr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/adapters/expr"
)

func testBindings() map[string]any {
	return map[string]any{
		"event": map[string]any{
			"type": "order.placed",
			"data": map[string]any{
				"content": map[string]any{
					"amount":  float64(120),
					"urgent":  true,
					"comment": "",
				},
			},
		},
		"scope": map[string]any{
			"order": map[string]any{"id": "o-1"},
		},
		"thredId": "t-1",
	}
}

func TestEvaluate_Comparisons(t *testing.T) {
	e := expr.New()
	ctx := context.Background()

	tests := []struct {
		expr string
		want any
	}{
		{"event.type == 'order.placed'", true},
		{"event.type != 'order.placed'", false},
		{"event.type == \"order.placed\"", true},
		{"event.data.content.amount >= 100", true},
		{"event.data.content.amount < 100", false},
		{"event.data.content.amount == 120", true},
		{"scope.order.id == 'o-1'", true},
		{"thredId == 't-1'", true},
		{"event.missing == 'x'", false},
		{"event.type == 'order.placed' && event.data.content.amount > 50", true},
		{"event.type == 'other' && event.data.content.amount > 50", false},
		{"event.type == 'other' || event.data.content.amount > 50", true},
		{"event.type == 'other' || event.data.content.amount > 500", false},
		{"!event.data.content.urgent", false},
		{"event.data.content.urgent == true", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Evaluate(ctx, tt.expr, testBindings())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_SingleTermReturnsValue(t *testing.T) {
	e := expr.New()
	ctx := context.Background()

	got, err := e.Evaluate(ctx, "event.data.content.amount", testBindings())
	require.NoError(t, err)
	assert.Equal(t, float64(120), got)

	got, err = e.Evaluate(ctx, "scope.order", testBindings())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "o-1"}, got)

	// Missing paths resolve to nil, not an error.
	got, err = e.Evaluate(ctx, "scope.nothing.here", testBindings())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluate_QuotedOperatorIsNotSplit(t *testing.T) {
	e := expr.New()
	b := map[string]any{"event": map[string]any{"type": "a==b"}}

	got, err := e.Evaluate(context.Background(), "event.type == 'a==b'", b)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEvaluate_Empty(t *testing.T) {
	e := expr.New()
	_, err := e.Evaluate(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	e := expr.New()
	ctx := context.Background()

	out, err := e.Render(ctx, "order {{.scope.order.id}} for {{.event.data.content.amount}}", testBindings())
	require.NoError(t, err)
	assert.Equal(t, "order o-1 for 120", out)

	// Missing keys render as zero values instead of failing.
	out, err = e.Render(ctx, "[{{.scope.nope}}]", testBindings())
	require.NoError(t, err)
	assert.Equal(t, "[<no value>]", out)

	_, err = e.Render(ctx, "{{.broken", testBindings())
	assert.Error(t, err)
}
