// Package graph provides node (step) definitions
package graph

import "encoding/json"

// StepStatus is the lifecycle marker of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
)

// Position is the canvas location of a node
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step of a scenario. A node without a PluginKey is
// unconfigured and must be rendered and executed as such, never rejected.
type Node struct {
	ID                string                 `json:"id"`
	Order             float64                `json:"order"`
	PluginKey         string                 `json:"pluginKey,omitempty"`
	Label             string                 `json:"label,omitempty"`
	Config            map[string]interface{} `json:"config,omitempty"`
	Status            StepStatus             `json:"status,omitempty"`
	ContextSchemaPath string                 `json:"contextSchemaPath,omitempty"`
	ContextDataPath   string                 `json:"contextDataPath,omitempty"`
	Position          Position               `json:"position"`
}

// UnmarshalJSON accepts the legacy "attrs" key as an alias of "config".
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	aux := struct {
		*plain
		Attrs map[string]interface{} `json:"attrs,omitempty"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if n.Config == nil && aux.Attrs != nil {
		n.Config = aux.Attrs
	}
	return nil
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	return nil
}

// IsConfigured reports whether the node declares a step type
func (n *Node) IsConfigured() bool {
	return n.PluginKey != ""
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Config = CopyMap(n.Config)
	return &c
}
