package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/domain"
)

func TestDecodeControlArgs(t *testing.T) {
	args, err := domain.DecodeControlArgs(map[string]any{
		"op":      domain.OpTransitionThred,
		"thredId": "t-1",
		"transition": map[string]any{
			"name":  "shipped",
			"input": "forward",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OpTransitionThred, args.Op)
	assert.Equal(t, "t-1", args.ThredID)
	require.NotNil(t, args.Transition)
	assert.Equal(t, "shipped", args.Transition.Name)
	assert.Equal(t, domain.InputForward, args.Transition.Input)
}

func TestDecodeControlArgs_WeakTyping(t *testing.T) {
	// JSON-decoded content carries numbers as float64.
	args, err := domain.DecodeControlArgs(map[string]any{
		"op":    domain.OpShutdown,
		"delay": float64(1500),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), args.Delay)
	assert.Equal(t, "1.5s", args.DelayDuration().String())
}

func TestDecodeControlArgs_MissingOp(t *testing.T) {
	_, err := domain.DecodeControlArgs(map[string]any{"thredId": "t-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op")
}

func TestControlOpsComplete(t *testing.T) {
	ops := domain.ControlOps()
	assert.Len(t, ops, 6)
	assert.Contains(t, ops, domain.OpTimeoutReaction)
	assert.Contains(t, ops, domain.OpTerminateAllThreds)
}

func TestNewStatusEvent(t *testing.T) {
	req := domain.NewEvent(domain.EventTypeControl, domain.Source{ID: "admin"}, map[string]any{
		"op": domain.OpTerminateThred,
	})
	req.ThredID = "t-1"

	ev := domain.NewStatusEvent(req, domain.OpTerminateThred, domain.StatusSuccess, "thred t-1 terminated")

	assert.Equal(t, domain.EventTypeControlStatus, ev.Type)
	assert.Equal(t, req.ID, ev.Re)
	assert.Equal(t, "t-1", ev.ThredID)
	assert.Equal(t, domain.StatusSuccess, ev.Data.Content["status"])
	assert.Equal(t, domain.OpTerminateThred, ev.Data.Content["operation"])
}
