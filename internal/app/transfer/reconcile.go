package transfer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/infrastructure/metrics"
)

// Mode selects where reconciled scenarios land
type Mode string

const (
	// ModeNewWorkspace adds every imported workspace as a new workspace
	ModeNewWorkspace Mode = "new-workspace"
	// ModeIntoWorkspace adds every imported scenario to an existing workspace
	ModeIntoWorkspace Mode = "into-workspace"
)

// EdgePolicy decides what happens to imported edges
type EdgePolicy string

const (
	// EdgesSequential discards imported edges and links nodes in traversal
	// order. Branching graphs therefore import as linear chains.
	EdgesSequential EdgePolicy = "sequential"
	// EdgesPreserve keeps imported edges whose endpoints were remapped
	EdgesPreserve EdgePolicy = "preserve"
)

// Options configure one reconciliation
type Options struct {
	Mode              Mode
	TargetWorkspaceID string
	Edges             EdgePolicy
	Now               func() time.Time
	NewID             func() string
	Logger            *zap.Logger
}

// Result is the graph fragment produced by Reconcile. In ModeNewWorkspace
// Workspaces is set; in ModeIntoWorkspace Scenarios and ContextItems are.
type Result struct {
	Mode              Mode
	TargetWorkspaceID string
	Workspaces        []*graph.Workspace
	Scenarios         []*graph.Scenario
	ContextItems      []*graph.ContextItem
	// IDs maps imported workspace, scenario and context item ids to new ones
	IDs map[string]string
	// Dropped counts references that could not be remapped
	Dropped int
}

// reconciler carries the per-invocation bookkeeping
type reconciler struct {
	opts   Options
	now    time.Time
	ids    map[string]string
	logger *zap.Logger
	drops  int
}

// Reconcile builds a copy of the payload's graph with every identifier
// regenerated and every cross reference rewritten. Parents are visited
// before children. The payload is never modified, and no emitted edge or
// context item references an id outside the new fragment.
func Reconcile(p *Payload, opts Options) (*Result, error) {
	if p == nil {
		return nil, ErrMissingItems
	}
	if opts.Mode == "" {
		opts.Mode = ModeNewWorkspace
	}
	if opts.Edges == "" {
		opts.Edges = EdgesSequential
	}
	switch opts.Mode {
	case ModeNewWorkspace:
	case ModeIntoWorkspace:
		if opts.TargetWorkspaceID == "" {
			return nil, ErrNoTarget
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	if opts.Edges != EdgesSequential && opts.Edges != EdgesPreserve {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, opts.Edges)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if p.ScenarioCount() == 0 {
		return nil, ErrNoScenarios
	}

	r := &reconciler{
		opts:   opts,
		now:    opts.Now(),
		ids:    make(map[string]string),
		logger: opts.Logger.Named("reconciler"),
	}

	res := &Result{Mode: opts.Mode, TargetWorkspaceID: opts.TargetWorkspaceID, IDs: r.ids}
	for _, w := range p.Items {
		nw := r.workspace(w)
		switch opts.Mode {
		case ModeNewWorkspace:
			res.Workspaces = append(res.Workspaces, nw)
		case ModeIntoWorkspace:
			res.Scenarios = append(res.Scenarios, nw.Children...)
			res.ContextItems = append(res.ContextItems, nw.ContextItems...)
		}
	}
	res.Dropped = r.drops

	if err := res.validate(); err != nil {
		return nil, err
	}
	metrics.Import(string(opts.Mode))
	r.logger.Info("import reconciled",
		zap.String("mode", string(opts.Mode)),
		zap.Int("workspaces", len(p.Items)),
		zap.Int("scenarios", p.ScenarioCount()),
		zap.Int("dropped", r.drops))
	return res, nil
}

func (r *reconciler) fresh(old string) string {
	id := r.opts.NewID()
	if old != "" {
		r.ids[old] = id
	}
	return id
}

func (r *reconciler) drop(msg string, fields ...zap.Field) {
	r.drops++
	r.logger.Warn(msg, fields...)
}

func (r *reconciler) workspace(w *graph.Workspace) *graph.Workspace {
	nw := &graph.Workspace{
		ID:           r.fresh(w.ID),
		Title:        w.Title,
		Description:  w.Description,
		Children:     make([]*graph.Scenario, 0, len(w.Children)),
		ContextItems: make([]*graph.ContextItem, 0, len(w.ContextItems)),
		CreatedAt:    r.now,
		UpdatedAt:    r.now,
	}

	// Scenario ids are resolved per workspace so that an item only binds to
	// a scenario imported alongside it.
	scenarios := make(map[string]string, len(w.Children))
	for _, sc := range w.Children {
		ns := r.scenario(sc)
		if sc.ID != "" {
			scenarios[sc.ID] = ns.ID
		}
		nw.Children = append(nw.Children, ns)
	}

	for _, c := range w.ContextItems {
		nc := c.Clone()
		nc.ID = r.fresh(c.ID)
		if !c.IsGlobal() {
			mapped, ok := scenarios[c.ScenarioID]
			if !ok {
				r.drop("dropping context item bound to a missing scenario",
					zap.String("itemID", c.ID), zap.String("scenarioID", c.ScenarioID))
				continue
			}
			nc.ScenarioID = mapped
		}
		if nc.CreatedAt.IsZero() {
			nc.CreatedAt = r.now
		}
		if nc.UpdatedAt.IsZero() {
			nc.UpdatedAt = r.now
		}
		nw.ContextItems = append(nw.ContextItems, nc)
	}
	return nw
}

func (r *reconciler) scenario(sc *graph.Scenario) *graph.Scenario {
	ns := &graph.Scenario{
		ID:          r.fresh(sc.ID),
		Title:       sc.Title,
		Description: sc.Description,
		Children:    make([]*graph.Node, 0, len(sc.Children)),
		Edges:       []*graph.Edge{},
		Filters:     make([]*graph.Filter, 0, len(sc.Filters)),
		Context:     graph.CopyMap(sc.Context),
	}

	for _, f := range sc.Filters {
		nf := f.Clone()
		nf.ID = r.opts.NewID()
		ns.Filters = append(ns.Filters, nf)
	}

	// Node ids are only meaningful inside their scenario
	nodes := make(map[string]string, len(sc.Children))
	for _, n := range sc.Children {
		nn := n.Clone()
		nn.ID = r.opts.NewID()
		if n.ID != "" {
			nodes[n.ID] = nn.ID
		}
		ns.Children = append(ns.Children, nn)
	}

	switch r.opts.Edges {
	case EdgesPreserve:
		ns.Edges = r.preserveEdges(sc, ns, nodes)
	default:
		ns.Edges = r.sequentialEdges(ns)
	}
	return ns
}

// sequentialEdges links every imported node, id-less ones included, in
// order. Ties are broken by the new ids.
func (r *reconciler) sequentialEdges(ns *graph.Scenario) []*graph.Edge {
	ordered := make([]*graph.Node, len(ns.Children))
	copy(ordered, ns.Children)
	graph.SortNodes(ordered)

	edges := make([]*graph.Edge, 0, len(ordered))
	for i := 1; i < len(ordered); i++ {
		edges = append(edges, &graph.Edge{
			ID:     r.opts.NewID(),
			Source: ordered[i-1].ID,
			Target: ordered[i].ID,
			Type:   graph.EdgeTypeSmoothStep,
		})
	}
	return edges
}

// preserveEdges rewrites the imported edges, dropping any whose endpoints
// were not remapped or that would repeat an earlier edge
func (r *reconciler) preserveEdges(sc, ns *graph.Scenario, nodes map[string]string) []*graph.Edge {
	edges := make([]*graph.Edge, 0, len(sc.Edges))
	draft := &graph.Scenario{ID: ns.ID, Children: ns.Children}
	for _, e := range sc.Edges {
		src, okSrc := nodes[e.Source]
		tgt, okTgt := nodes[e.Target]
		if !okSrc || !okTgt {
			r.drop("dropping edge with an unmapped endpoint",
				zap.String("edgeID", e.ID), zap.String("scenarioID", sc.ID))
			continue
		}
		ne := &graph.Edge{ID: r.opts.NewID(), Source: src, Target: tgt, Type: e.Type}
		if err := draft.AddEdge(ne); err != nil {
			r.drop("dropping invalid edge",
				zap.String("edgeID", e.ID), zap.String("scenarioID", sc.ID), zap.Error(err))
			continue
		}
		edges = append(edges, ne)
	}
	return edges
}

func (res *Result) validate() error {
	for _, w := range res.Workspaces {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("reconciled workspace %q: %w", w.ID, err)
		}
	}
	for _, sc := range res.Scenarios {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("reconciled scenario %q: %w", sc.ID, err)
		}
	}
	return nil
}
