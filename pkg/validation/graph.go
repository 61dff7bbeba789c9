package validation

import (
	"fmt"

	"github.com/stepflow/stepflow/internal/core/graph"
)

// ValidateWorkspaces performs structural validation on a whole entity tree.
// It is intended for trees loaded from external sources where the in-method
// guards (AddNode/AddEdge) were bypassed. Workspace and scenario IDs must be
// unique across the tree, and every edge must stay inside its scenario.
func ValidateWorkspaces(items []*graph.Workspace) error {
	workspaces := make(map[string]struct{}, len(items))
	scenarios := make(map[string]string)
	for _, w := range items {
		if w == nil {
			return fmt.Errorf("nil workspace encountered")
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("workspace %q: %w", w.ID, err)
		}
		if _, dup := workspaces[w.ID]; dup {
			return fmt.Errorf("workspace %q: %w", w.ID, graph.ErrDuplicateWorkspace)
		}
		workspaces[w.ID] = struct{}{}
		for _, s := range w.Children {
			if owner, dup := scenarios[s.ID]; dup {
				return fmt.Errorf("scenario %q already owned by workspace %q: %w", s.ID, owner, graph.ErrDuplicateScenario)
			}
			scenarios[s.ID] = w.ID
		}
		for _, c := range w.ContextItems {
			if !c.IsGlobal() && w.Scenario(c.ScenarioID) == nil {
				return fmt.Errorf("context item %q: %w", c.ID, graph.ErrScenarioNotFound)
			}
		}
	}
	return nil
}
