package graph

import "sort"

// Scenario is a named graph of steps belonging to exactly one workspace.
// Every edge endpoint must reference a node in the same scenario.
type Scenario struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Children    []*Node                `json:"children"`
	Edges       []*Edge                `json:"edges"`
	Filters     []*Filter              `json:"filters"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Validate checks scenario integrity: node IDs are unique and every edge
// connects two nodes of this scenario.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return ErrInvalidScenarioID
	}
	seen := make(map[string]struct{}, len(s.Children))
	for _, n := range s.Children {
		if n == nil {
			return ErrNilNode
		}
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := seen[n.ID]; dup {
			return ErrDuplicateNode
		}
		seen[n.ID] = struct{}{}
	}
	for _, e := range s.Edges {
		if e == nil {
			return ErrNilEdge
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if _, ok := seen[e.Source]; !ok {
			return ErrSourceNodeNotFound
		}
		if _, ok := seen[e.Target]; !ok {
			return ErrTargetNodeNotFound
		}
	}
	return nil
}

// Node returns the node with the given ID or nil
func (s *Scenario) Node(id string) *Node {
	for _, n := range s.Children {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// AddNode appends a node
func (s *Scenario) AddNode(node *Node) error {
	if node == nil {
		return ErrNilNode
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if s.Node(node.ID) != nil {
		return ErrDuplicateNode
	}
	s.Children = append(s.Children, node)
	return nil
}

// AddEdge appends an edge after checking both endpoints exist
func (s *Scenario) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrNilEdge
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	if s.Node(edge.Source) == nil {
		return ErrSourceNodeNotFound
	}
	if s.Node(edge.Target) == nil {
		return ErrTargetNodeNotFound
	}
	for _, e := range s.Edges {
		if e.ID == edge.ID || (e.Source == edge.Source && e.Target == edge.Target && e.Type == edge.Type) {
			return ErrDuplicateEdge
		}
	}
	s.Edges = append(s.Edges, edge)
	return nil
}

// RemoveNode deletes a node together with every incident edge
func (s *Scenario) RemoveNode(id string) error {
	idx := -1
	for i, n := range s.Children {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNodeNotFound
	}
	s.Children = append(s.Children[:idx:idx], s.Children[idx+1:]...)

	kept := s.Edges[:0:0]
	for _, e := range s.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	s.Edges = kept
	return nil
}

// RemoveEdge deletes an edge by ID
func (s *Scenario) RemoveEdge(id string) error {
	for i, e := range s.Edges {
		if e.ID == id {
			s.Edges = append(s.Edges[:i:i], s.Edges[i+1:]...)
			return nil
		}
	}
	return ErrEdgeNotFound
}

// SortedNodes returns the nodes in traversal order: Order ascending, ties
// broken by ID. The receiver is not reordered.
func (s *Scenario) SortedNodes() []*Node {
	out := make([]*Node, len(s.Children))
	copy(out, s.Children)
	SortNodes(out)
	return out
}

// SortNodes sorts nodes in place into traversal order
func SortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// NextOrder returns an order value placing a new node after every existing one
func (s *Scenario) NextOrder() float64 {
	next := 0.0
	for i, n := range s.Children {
		if i == 0 || n.Order+1 > next {
			next = n.Order + 1
		}
	}
	return next
}

// Clone returns a deep copy of the scenario
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	c := &Scenario{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Children:    make([]*Node, 0, len(s.Children)),
		Edges:       make([]*Edge, 0, len(s.Edges)),
		Filters:     make([]*Filter, 0, len(s.Filters)),
		Context:     CopyMap(s.Context),
	}
	for _, n := range s.Children {
		c.Children = append(c.Children, n.Clone())
	}
	for _, e := range s.Edges {
		c.Edges = append(c.Edges, e.Clone())
	}
	for _, f := range s.Filters {
		c.Filters = append(c.Filters, f.Clone())
	}
	return c
}
