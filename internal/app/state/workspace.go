package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/core/graph"
)

// WorkspacePatch lists workspace fields to change; nil fields are kept
type WorkspacePatch struct {
	Title       *string
	Description *string
}

// AddWorkspace inserts a copy of w, generating ids for the workspace and any
// nested entity that has none. It returns the workspace id.
func (s *State) AddWorkspace(w *graph.Workspace) (string, error) {
	if w == nil {
		return "", ErrNilWorkspace
	}
	next := w.Clone()
	if next.ID == "" {
		next.ID = newID()
	}
	now := s.now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	for _, sc := range next.Children {
		if sc != nil && sc.ID == "" {
			sc.ID = newID()
		}
	}
	if err := next.Validate(); err != nil {
		return "", err
	}

	err := s.mutate("add_workspace", func() error {
		if s.idInUse(next.ID) {
			return fmt.Errorf("%w: workspace %q", ErrDuplicateID, next.ID)
		}
		for _, sc := range next.Children {
			if s.idInUse(sc.ID) {
				return fmt.Errorf("%w: scenario %q", ErrDuplicateID, sc.ID)
			}
		}
		s.workspaces = append(s.workspaces, next)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("workspace added", zap.String("workspaceID", next.ID))
	return next.ID, nil
}

// UpdateWorkspace applies patch to the workspace
func (s *State) UpdateWorkspace(id string, patch WorkspacePatch) error {
	return s.mutate("update_workspace", func() error {
		w := s.workspace(id)
		if w == nil {
			return graph.ErrWorkspaceNotFound
		}
		if patch.Title != nil {
			w.Title = *patch.Title
		}
		if patch.Description != nil {
			w.Description = *patch.Description
		}
		s.touch(w)
		return nil
	})
}

// DeleteWorkspace removes a workspace with everything it owns. A selection
// inside it is cleared.
func (s *State) DeleteWorkspace(id string) error {
	err := s.mutate("delete_workspace", func() error {
		for i, w := range s.workspaces {
			if w.ID != id {
				continue
			}
			s.workspaces = append(s.workspaces[:i:i], s.workspaces[i+1:]...)
			if s.selected.Workspace == id {
				s.selected.Workspace, s.selected.Scenario, s.selected.Node = "", "", ""
			}
			return nil
		}
		return graph.ErrWorkspaceNotFound
	})
	if err == nil {
		s.logger.Debug("workspace deleted", zap.String("workspaceID", id))
	}
	return err
}

// MergeWorkspaces appends freshly reconciled workspaces. Either all of them
// are added or none is.
func (s *State) MergeWorkspaces(items []*graph.Workspace) error {
	next := make([]*graph.Workspace, 0, len(items))
	for _, w := range items {
		if w == nil {
			return ErrNilWorkspace
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("workspace %q: %w", w.ID, err)
		}
		next = append(next, w.Clone())
	}

	return s.mutate("merge_workspaces", func() error {
		seen := make(map[string]struct{})
		claim := func(id string) error {
			if _, dup := seen[id]; dup || s.idInUse(id) {
				return fmt.Errorf("%w: %q", ErrDuplicateID, id)
			}
			seen[id] = struct{}{}
			return nil
		}
		for _, w := range next {
			if err := claim(w.ID); err != nil {
				return err
			}
			for _, sc := range w.Children {
				if err := claim(sc.ID); err != nil {
					return err
				}
			}
		}
		s.workspaces = append(s.workspaces, next...)
		return nil
	})
}

// MergeIntoWorkspace adds reconciled scenarios and context items to an
// existing workspace. Scoped items must reference a scenario of the target
// after the merge. Either everything is added or nothing is.
func (s *State) MergeIntoWorkspace(targetID string, scenarios []*graph.Scenario, items []*graph.ContextItem) error {
	return s.mutate("merge_into_workspace", func() error {
		target := s.workspace(targetID)
		if target == nil {
			return graph.ErrWorkspaceNotFound
		}
		draft := target.Clone()
		for _, sc := range scenarios {
			if sc != nil && s.idInUse(sc.ID) {
				return fmt.Errorf("%w: scenario %q", ErrDuplicateID, sc.ID)
			}
			if err := draft.AddScenario(sc.Clone()); err != nil {
				return err
			}
		}
		for _, c := range items {
			if c == nil {
				return graph.ErrNilContextItem
			}
			if err := draft.AddContextItem(c.Clone()); err != nil {
				return fmt.Errorf("context item %q: %w", c.ID, err)
			}
		}
		if err := draft.Validate(); err != nil {
			return err
		}
		draft.UpdatedAt = s.now()
		*target = *draft
		return nil
	})
}
