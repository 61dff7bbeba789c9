package usecases

import (
	"context"

	"github.com/stepflow/stepflow/internal/core/session"
)

// SessionCache keeps flow session snapshots between processes, keyed by
// scenario id. Implemented by the memory and redis adapters.
type SessionCache interface {
	SaveSession(ctx context.Context, scenarioID string, snap session.Snapshot) error
	LoadSession(ctx context.Context, scenarioID string) (session.Snapshot, error)
	DeleteSession(ctx context.Context, scenarioID string) error
}
