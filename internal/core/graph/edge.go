// Package graph provides edge definitions
package graph

// EdgeType represents the visual type of an edge
type EdgeType string

const (
	// EdgeTypeDefault represents a default edge
	EdgeTypeDefault EdgeType = "default"
	// EdgeTypeSmoothStep is the connector drawn between sequential steps
	EdgeTypeSmoothStep EdgeType = "smoothstep"
)

// Edge is a directed link between two nodes of the same scenario.
// Execution order is driven by Node.Order; edges are a traversal hint only.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type,omitempty"`
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrInvalidEdgeID
	}
	if e.Source == "" {
		return ErrInvalidSource
	}
	if e.Target == "" {
		return ErrInvalidTarget
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	if e.Type == "" {
		e.Type = EdgeTypeDefault
	}
	return nil
}

// Clone returns a copy of the edge
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
