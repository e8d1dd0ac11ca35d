package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/domain"
)

func testPattern() *domain.Pattern {
	return &domain.Pattern{
		ID: "p",
		Reactions: []*domain.Reaction{
			{
				Name:      "first",
				Condition: &domain.Condition{Kind: domain.KindFilter, Expr: "true"},
				Expiry: &domain.Expiry{
					Interval:   1000,
					Transition: domain.Transition{Name: domain.TransitionTerminate},
				},
			},
			{Name: "second", Condition: &domain.Condition{Kind: domain.KindFilter, Expr: "true"}},
		},
	}
}

func TestNewThred(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	th := domain.NewThred("t-1", testPattern(), now)

	assert.Equal(t, "t-1", th.ID)
	assert.Equal(t, "p", th.PatternID)
	assert.Equal(t, 0, th.CurrentReaction)
	assert.True(t, th.Active)
	// First reaction declares a 1s expiry, armed from creation time.
	assert.Equal(t, now.Add(time.Second), th.ExpiresAt)
}

func TestThredExpiry(t *testing.T) {
	now := time.Now()
	th := domain.NewThred("t-1", testPattern(), now)

	assert.False(t, th.ExpiryDue(now))
	assert.True(t, th.ExpiryDue(now.Add(2*time.Second)))

	// Moving to a reaction without expiry clears the deadline.
	th.ArmExpiry(testPattern().ReactionAt(1), now)
	assert.True(t, th.ExpiresAt.IsZero())
	assert.False(t, th.ExpiryDue(now.Add(time.Hour)))
}

func TestThredScope(t *testing.T) {
	th := domain.NewThred("t-1", testPattern(), time.Now())

	_, ok := th.Local("order")
	assert.False(t, ok)

	th.SetLocal("order", map[string]any{"id": "o-1"})
	v, ok := th.Local("order")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "o-1"}, v)
}

func TestThredAddParticipants(t *testing.T) {
	th := domain.NewThred("t-1", testPattern(), time.Now())

	th.AddParticipants([]string{"alice", "bob"})
	th.AddParticipants([]string{"bob", "", "carol"})

	assert.Equal(t, []string{"alice", "bob", "carol"}, th.Participants)
}

func TestThredClearCondState(t *testing.T) {
	th := domain.NewThred("t-1", testPattern(), time.Now())
	th.CondState["r1.0"] = true
	th.CondState["r1.1"] = true

	th.ClearCondState()
	assert.Empty(t, th.CondState)
}
