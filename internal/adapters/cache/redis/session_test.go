package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/internal/core/session"
)

func TestSessionCache(t *testing.T) {
	url := os.Getenv("STEPFLOW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Integration test requires Redis (set STEPFLOW_TEST_REDIS_URL)")
	}

	ctx := context.Background()
	cache, err := Connect(ctx, url, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	snap := session.Snapshot{
		CurrentStepIndex: 1,
		TemporarySteps:   []session.StepRecord{{NodeID: "n1", Result: "ok"}},
		ScenarioID:       "redis-test-scenario",
		Status:           session.StatusPaused,
	}
	require.NoError(t, cache.SaveSession(ctx, snap.ScenarioID, snap))
	defer func() { _ = cache.DeleteSession(ctx, snap.ScenarioID) }()

	got, err := cache.LoadSession(ctx, snap.ScenarioID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStepIndex)
	assert.Equal(t, "n1", got.TemporarySteps[0].NodeID)

	require.NoError(t, cache.DeleteSession(ctx, snap.ScenarioID))
	_, err = cache.LoadSession(ctx, snap.ScenarioID)
	assert.ErrorIs(t, err, session.ErrNoSnapshot)
}

func TestSessionCache_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := Connect(ctx, "", time.Minute)
	assert.Error(t, err)

	_, err = Connect(ctx, "not-a-url://", time.Minute)
	assert.Error(t, err)

	cache := NewSessionCache(nil, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)
	assert.ErrorIs(t, cache.SaveSession(ctx, "", session.Snapshot{}), session.ErrNoScenario)
	_, err = cache.LoadSession(ctx, "")
	assert.ErrorIs(t, err, session.ErrNoScenario)
	assert.Equal(t, "session:abc", key("abc"))
}
