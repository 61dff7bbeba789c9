package state

import (
	"github.com/stepflow/stepflow/internal/core/graph"
)

// AddContextItem inserts a copy of item into the workspace, backfilling
// missing timestamps. It returns the item id.
func (s *State) AddContextItem(workspaceID string, item *graph.ContextItem) (string, error) {
	if item == nil {
		return "", graph.ErrNilContextItem
	}
	next := item.Clone()
	if next.ID == "" {
		next.ID = newID()
	}
	now := s.now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = now
	}

	err := s.mutate("add_context_item", func() error {
		w := s.workspace(workspaceID)
		if w == nil {
			return graph.ErrWorkspaceNotFound
		}
		if err := w.AddContextItem(next); err != nil {
			return err
		}
		s.touch(w)
		return nil
	})
	if err != nil {
		return "", err
	}
	return next.ID, nil
}

// DeleteContextItem removes a context item from the workspace
func (s *State) DeleteContextItem(workspaceID, itemID string) error {
	return s.mutate("delete_context_item", func() error {
		w := s.workspace(workspaceID)
		if w == nil {
			return graph.ErrWorkspaceNotFound
		}
		if err := w.RemoveContextItem(itemID); err != nil {
			return err
		}
		s.touch(w)
		return nil
	})
}
