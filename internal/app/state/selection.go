package state

import (
	"fmt"

	"github.com/stepflow/stepflow/internal/app/dto"
)

// Select changes the current selection. Every non-empty id must resolve and
// nest inside the one before it.
func (s *State) Select(sel dto.Selection) error {
	return s.mutate("select", func() error {
		if err := s.checkSelection(sel); err != nil {
			return err
		}
		s.selected = sel
		return nil
	})
}

// Selection returns the current selection
func (s *State) Selection() dto.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *State) checkSelection(sel dto.Selection) error {
	if sel.Workspace == "" {
		if sel.Scenario != "" || sel.Node != "" {
			return fmt.Errorf("%w: scenario selected without workspace", ErrInvalidSelection)
		}
		return nil
	}
	w := s.workspace(sel.Workspace)
	if w == nil {
		return fmt.Errorf("%w: workspace %q", ErrInvalidSelection, sel.Workspace)
	}
	if sel.Scenario == "" {
		if sel.Node != "" {
			return fmt.Errorf("%w: node selected without scenario", ErrInvalidSelection)
		}
		return nil
	}
	sc := w.Scenario(sel.Scenario)
	if sc == nil {
		return fmt.Errorf("%w: scenario %q", ErrInvalidSelection, sel.Scenario)
	}
	if sel.Node != "" && sc.Node(sel.Node) == nil {
		return fmt.Errorf("%w: node %q", ErrInvalidSelection, sel.Node)
	}
	return nil
}
