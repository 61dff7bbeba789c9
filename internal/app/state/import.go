package state

import (
	"fmt"

	"github.com/stepflow/stepflow/internal/app/transfer"
)

// ApplyImport merges a reconciled fragment according to its mode
func (s *State) ApplyImport(res *transfer.Result) error {
	if res == nil {
		return transfer.ErrMissingItems
	}
	switch res.Mode {
	case transfer.ModeNewWorkspace:
		return s.MergeWorkspaces(res.Workspaces)
	case transfer.ModeIntoWorkspace:
		return s.MergeIntoWorkspace(res.TargetWorkspaceID, res.Scenarios, res.ContextItems)
	default:
		return fmt.Errorf("%w: %q", transfer.ErrUnknownMode, res.Mode)
	}
}
