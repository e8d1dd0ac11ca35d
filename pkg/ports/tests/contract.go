// Package tests provides reusable contract suites for ports
// implementations. Adapter packages call these from their own tests so
// every store honors the same semantics.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/ports"
)

// RunThredStoreContract verifies that a ThredStore implementation
// adheres to the interface contract.
func RunThredStoreContract(t *testing.T, store ports.ThredStore) {
	ctx := context.Background()
	pattern := &domain.Pattern{
		ID: "contract-pattern",
		Reactions: []*domain.Reaction{
			{Name: "start", Condition: &domain.Condition{Kind: domain.KindFilter, Expr: "event.type == 'x'"}},
		},
	}
	id := "contract-thred-" + time.Now().Format("20060102150405.000")

	t.Run("save and load", func(t *testing.T) {
		rec := domain.NewThred(id, pattern, time.Now().UTC())
		rec.SetLocal("captured", "value")
		rec.AddParticipants([]string{"alice", "bob"})
		rec.CondState["r0.1"] = true

		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, rec.PatternID, loaded.PatternID)
		assert.Equal(t, rec.CurrentReaction, loaded.CurrentReaction)
		assert.Equal(t, "value", loaded.Scope["captured"])
		assert.Equal(t, []string{"alice", "bob"}, loaded.Participants)
		assert.True(t, loaded.CondState["r0.1"])
		assert.True(t, loaded.Active)
	})

	t.Run("load non-existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+id)
		assert.ErrorIs(t, err, domain.ErrThredNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewThred(id, pattern, time.Now().UTC())))
		require.NoError(t, store.Delete(ctx, id))

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrThredNotFound)
	})

	t.Run("list", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		require.NoError(t, store.Save(ctx, domain.NewThred(id1, pattern, time.Now().UTC())))
		require.NoError(t, store.Save(ctx, domain.NewThred(id2, pattern, time.Now().UTC())))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
