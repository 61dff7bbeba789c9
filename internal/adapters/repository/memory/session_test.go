package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/internal/core/session"
)

func TestSessionCache(t *testing.T) {
	ctx := context.Background()
	cache := NewSessionCache()

	_, err := cache.LoadSession(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNoSnapshot)
	assert.ErrorIs(t, cache.SaveSession(ctx, "", session.Snapshot{}), session.ErrNoScenario)

	snap := session.Snapshot{ScenarioID: "s1", CurrentStepIndex: 2, TemporarySteps: []session.StepRecord{{NodeID: "a"}, {NodeID: "b"}}}
	require.NoError(t, cache.SaveSession(ctx, "s1", snap))
	snap.TemporarySteps[0].NodeID = "mutated"

	got, err := cache.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.TemporarySteps[0].NodeID)
	assert.Equal(t, 2, got.CurrentStepIndex)

	require.NoError(t, cache.DeleteSession(ctx, "s1"))
	_, err = cache.LoadSession(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNoSnapshot)
}
