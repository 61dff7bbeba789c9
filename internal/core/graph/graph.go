// Package graph provides the core entity graph: workspaces own scenarios,
// scenarios own nodes and edges. The package has no external dependencies
// and performs no I/O.
package graph

import "time"

// Workspace is the top-level container. Deleting it deletes every scenario
// and context item it owns.
type Workspace struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Children     []*Scenario    `json:"children"`
	ContextItems []*ContextItem `json:"contextItems"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Validate ensures workspace integrity, including every owned scenario
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return ErrInvalidWorkspaceID
	}
	seen := make(map[string]struct{}, len(w.Children))
	for _, s := range w.Children {
		if s == nil {
			return ErrNilScenario
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.ID]; dup {
			return ErrDuplicateScenario
		}
		seen[s.ID] = struct{}{}
	}
	for _, c := range w.ContextItems {
		if c == nil {
			return ErrNilContextItem
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Scenario returns the owned scenario with the given ID or nil
func (w *Workspace) Scenario(id string) *Scenario {
	for _, s := range w.Children {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AddScenario appends a scenario
func (w *Workspace) AddScenario(s *Scenario) error {
	if s == nil {
		return ErrNilScenario
	}
	if s.ID == "" {
		return ErrInvalidScenarioID
	}
	if w.Scenario(s.ID) != nil {
		return ErrDuplicateScenario
	}
	w.Children = append(w.Children, s)
	w.UpdatedAt = time.Now()
	return nil
}

// RemoveScenario deletes a scenario and the context items scoped to it
func (w *Workspace) RemoveScenario(id string) error {
	idx := -1
	for i, s := range w.Children {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrScenarioNotFound
	}
	w.Children = append(w.Children[:idx:idx], w.Children[idx+1:]...)

	kept := w.ContextItems[:0:0]
	for _, c := range w.ContextItems {
		if c.ScenarioID != id {
			kept = append(kept, c)
		}
	}
	w.ContextItems = kept
	w.UpdatedAt = time.Now()
	return nil
}

// AddContextItem appends a context item. A scoped item must reference one of
// this workspace's scenarios.
func (w *Workspace) AddContextItem(c *ContextItem) error {
	if c == nil {
		return ErrNilContextItem
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.IsGlobal() && w.Scenario(c.ScenarioID) == nil {
		return ErrScenarioNotFound
	}
	w.ContextItems = append(w.ContextItems, c)
	w.UpdatedAt = time.Now()
	return nil
}

// RemoveContextItem deletes a context item by ID
func (w *Workspace) RemoveContextItem(id string) error {
	for i, c := range w.ContextItems {
		if c.ID == id {
			w.ContextItems = append(w.ContextItems[:i:i], w.ContextItems[i+1:]...)
			w.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrContextItemNotFound
}

// ContextItemsFor returns the items visible to a scenario: every global item
// plus the ones scoped to it.
func (w *Workspace) ContextItemsFor(scenarioID string) []*ContextItem {
	var out []*ContextItem
	for _, c := range w.ContextItems {
		if c.IsGlobal() || c.ScenarioID == scenarioID {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of the workspace
func (w *Workspace) Clone() *Workspace {
	if w == nil {
		return nil
	}
	c := &Workspace{
		ID:           w.ID,
		Title:        w.Title,
		Description:  w.Description,
		Children:     make([]*Scenario, 0, len(w.Children)),
		ContextItems: make([]*ContextItem, 0, len(w.ContextItems)),
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
	for _, s := range w.Children {
		c.Children = append(c.Children, s.Clone())
	}
	for _, item := range w.ContextItems {
		c.ContextItems = append(c.ContextItems, item.Clone())
	}
	return c
}
