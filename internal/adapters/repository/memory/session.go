package memory

import (
	"context"
	"sync"

	"github.com/stepflow/stepflow/internal/core/session"
)

// SessionCache keeps session snapshots in process, keyed by scenario id
type SessionCache struct {
	mu    sync.Mutex
	snaps map[string]session.Snapshot
}

// NewSessionCache creates an empty cache
func NewSessionCache() *SessionCache {
	return &SessionCache{snaps: make(map[string]session.Snapshot)}
}

func (c *SessionCache) SaveSession(_ context.Context, scenarioID string, snap session.Snapshot) error {
	if scenarioID == "" {
		return session.ErrNoScenario
	}
	snap.TemporarySteps = append([]session.StepRecord{}, snap.TemporarySteps...)
	c.mu.Lock()
	c.snaps[scenarioID] = snap
	c.mu.Unlock()
	return nil
}

func (c *SessionCache) LoadSession(_ context.Context, scenarioID string) (session.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[scenarioID]
	if !ok {
		return session.Snapshot{}, session.ErrNoSnapshot
	}
	snap.TemporarySteps = append([]session.StepRecord{}, snap.TemporarySteps...)
	return snap, nil
}

func (c *SessionCache) DeleteSession(_ context.Context, scenarioID string) error {
	c.mu.Lock()
	delete(c.snaps, scenarioID)
	c.mu.Unlock()
	return nil
}
