package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/core/graph"
)

// ScenarioPatch lists scenario fields to change; nil fields are kept
type ScenarioPatch struct {
	Title       *string
	Description *string
	Context     map[string]interface{}
	Filters     []*graph.Filter
}

// ScenarioData is the traversal view of one scenario: nodes in order and edges
type ScenarioData struct {
	WorkspaceID string
	ScenarioID  string
	Nodes       []*graph.Node
	Edges       []*graph.Edge
	Context     map[string]interface{}
}

// AddScenario inserts a copy of sc into the workspace and returns its id
func (s *State) AddScenario(workspaceID string, sc *graph.Scenario) (string, error) {
	if sc == nil {
		return "", graph.ErrNilScenario
	}
	next := sc.Clone()
	if next.ID == "" {
		next.ID = newID()
	}
	if next.Children == nil {
		next.Children = []*graph.Node{}
	}
	if err := next.Validate(); err != nil {
		return "", err
	}

	err := s.mutate("add_scenario", func() error {
		w := s.workspace(workspaceID)
		if w == nil {
			return graph.ErrWorkspaceNotFound
		}
		if s.idInUse(next.ID) {
			return fmt.Errorf("%w: scenario %q", ErrDuplicateID, next.ID)
		}
		if err := w.AddScenario(next); err != nil {
			return err
		}
		s.touch(w)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("scenario added", zap.String("workspaceID", workspaceID), zap.String("scenarioID", next.ID))
	return next.ID, nil
}

// UpdateScenario applies patch to the scenario
func (s *State) UpdateScenario(id string, patch ScenarioPatch) error {
	for _, f := range patch.Filters {
		if f == nil || f.ID == "" {
			return fmt.Errorf("scenario %q: filter without id", id)
		}
	}
	return s.mutate("update_scenario", func() error {
		w, sc := s.scenario(id)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		if patch.Title != nil {
			sc.Title = *patch.Title
		}
		if patch.Description != nil {
			sc.Description = *patch.Description
		}
		if patch.Context != nil {
			sc.Context = graph.CopyMap(patch.Context)
		}
		if patch.Filters != nil {
			filters := make([]*graph.Filter, 0, len(patch.Filters))
			for _, f := range patch.Filters {
				filters = append(filters, f.Clone())
			}
			sc.Filters = filters
		}
		s.touch(w)
		return nil
	})
}

// DeleteScenario removes a scenario and its scoped context items
func (s *State) DeleteScenario(id string) error {
	err := s.mutate("delete_scenario", func() error {
		w, sc := s.scenario(id)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		if err := w.RemoveScenario(id); err != nil {
			return err
		}
		s.touch(w)
		if s.selected.Scenario == id {
			s.selected.Scenario, s.selected.Node = "", ""
		}
		return nil
	})
	if err == nil {
		s.logger.Debug("scenario deleted", zap.String("scenarioID", id))
	}
	return err
}

// Scenario returns a copy of the scenario and the id of its workspace
func (s *State) Scenario(id string) (*graph.Scenario, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, sc := s.scenario(id)
	if sc == nil {
		return nil, "", graph.ErrScenarioNotFound
	}
	return sc.Clone(), w.ID, nil
}

// ScenarioData returns the nodes of a scenario sorted by order (ties by id)
// and its edges
func (s *State) ScenarioData(id string) (*ScenarioData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenarioData(id)
}

func (s *State) scenarioData(id string) (*ScenarioData, error) {
	w, sc := s.scenario(id)
	if sc == nil {
		return nil, graph.ErrScenarioNotFound
	}
	c := sc.Clone()
	graph.SortNodes(c.Children)
	return &ScenarioData{
		WorkspaceID: w.ID,
		ScenarioID:  c.ID,
		Nodes:       c.Children,
		Edges:       c.Edges,
		Context:     c.Context,
	}, nil
}

// ActiveScenarioData returns ScenarioData for the selected scenario
func (s *State) ActiveScenarioData() (*ScenarioData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected.Scenario == "" {
		return nil, ErrNoSelection
	}
	return s.scenarioData(s.selected.Scenario)
}

// ContextItemsFor returns copies of the context items visible to a scenario
func (s *State) ContextItemsFor(scenarioID string) ([]*graph.ContextItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, sc := s.scenario(scenarioID)
	if sc == nil {
		return nil, graph.ErrScenarioNotFound
	}
	items := w.ContextItemsFor(scenarioID)
	out := make([]*graph.ContextItem, 0, len(items))
	for _, c := range items {
		out = append(out, c.Clone())
	}
	return out, nil
}
