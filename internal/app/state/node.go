package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
)

// NodePatch lists node fields to change; nil fields are kept. Changing the
// step type without a Config resets the config to the new type's defaults.
type NodePatch struct {
	Label             *string
	PluginKey         *string
	Order             *float64
	Config            map[string]interface{}
	Status            *graph.StepStatus
	ContextSchemaPath *string
	ContextDataPath   *string
	Position          *graph.Position
}

// AddNode inserts a copy of node into the scenario. A declared step type
// must be registered; a node without one is accepted as unconfigured.
func (s *State) AddNode(scenarioID string, node *graph.Node) (string, error) {
	if node == nil {
		return "", graph.ErrNilNode
	}
	if err := s.requireStepType(node.PluginKey); err != nil {
		return "", err
	}
	next := node.Clone()
	if next.ID == "" {
		next.ID = newID()
	}
	if next.Status == "" {
		next.Status = graph.StepStatusPending
	}

	err := s.mutate("add_node", func() error {
		w, sc := s.scenario(scenarioID)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		if err := sc.AddNode(next); err != nil {
			return err
		}
		s.touch(w)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("node added",
		zap.String("scenarioID", scenarioID),
		zap.String("nodeID", next.ID),
		zap.String("type", next.PluginKey))
	return next.ID, nil
}

// AddStep creates a default step of type t after the scenario's last step
func (s *State) AddStep(scenarioID string, t plugin.Type) (*graph.Node, error) {
	if err := s.requireStepType(string(t)); err != nil {
		return nil, err
	}
	var created *graph.Node
	err := s.mutate("add_node", func() error {
		w, sc := s.scenario(scenarioID)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		step := s.registry.CreateDefaultStep(t, scenarioID, sc.NextOrder())
		if err := sc.AddNode(step); err != nil {
			return err
		}
		s.touch(w)
		created = step.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateNode applies patch to a node. The resulting config is validated
// against the schema of the node's step type.
func (s *State) UpdateNode(scenarioID, nodeID string, patch NodePatch) error {
	if patch.PluginKey != nil {
		if err := s.requireStepType(*patch.PluginKey); err != nil {
			return err
		}
	}
	return s.mutate("update_node", func() error {
		w, sc := s.scenario(scenarioID)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		n := sc.Node(nodeID)
		if n == nil {
			return graph.ErrNodeNotFound
		}
		next := n.Clone()
		if patch.PluginKey != nil && *patch.PluginKey != next.PluginKey {
			next.PluginKey = *patch.PluginKey
			next.Config = s.registry.DefaultConfig(plugin.Type(next.PluginKey))
		}
		if patch.Config != nil {
			next.Config = graph.CopyMap(patch.Config)
		}
		if next.IsConfigured() && (patch.Config != nil || patch.PluginKey != nil) {
			if err := s.registry.ValidateConfig(plugin.Type(next.PluginKey), next.Config); err != nil {
				return fmt.Errorf("node %q: %w", nodeID, err)
			}
		}
		if patch.Label != nil {
			next.Label = *patch.Label
		}
		if patch.Order != nil {
			next.Order = *patch.Order
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}
		if patch.ContextSchemaPath != nil {
			next.ContextSchemaPath = *patch.ContextSchemaPath
		}
		if patch.ContextDataPath != nil {
			next.ContextDataPath = *patch.ContextDataPath
		}
		if patch.Position != nil {
			next.Position = *patch.Position
		}
		*n = *next
		s.touch(w)
		return nil
	})
}

// DeleteNode removes a node and every edge touching it
func (s *State) DeleteNode(scenarioID, nodeID string) error {
	return s.mutate("delete_node", func() error {
		w, sc := s.scenario(scenarioID)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		if err := sc.RemoveNode(nodeID); err != nil {
			return err
		}
		if s.selected.Node == nodeID {
			s.selected.Node = ""
		}
		s.touch(w)
		return nil
	})
}

// AddEdge inserts an edge between two nodes of the scenario
func (s *State) AddEdge(scenarioID string, edge *graph.Edge) (string, error) {
	if edge == nil {
		return "", graph.ErrNilEdge
	}
	next := edge.Clone()
	if next.ID == "" {
		next.ID = newID()
	}
	err := s.mutate("add_edge", func() error {
		w, sc := s.scenario(scenarioID)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		if err := sc.AddEdge(next); err != nil {
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

// DeleteEdge removes an edge
func (s *State) DeleteEdge(scenarioID, edgeID string) error {
	return s.mutate("delete_edge", func() error {
		w, sc := s.scenario(scenarioID)
		if sc == nil {
			return graph.ErrScenarioNotFound
		}
		if err := sc.RemoveEdge(edgeID); err != nil {
			return err
		}
		s.touch(w)
		return nil
	})
}
