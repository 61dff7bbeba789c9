// Package state owns the live entity graph: every workspace with its
// scenarios, nodes, edges and context items, the current selection and the
// state version token.
//
// Each mutation is validated before it touches the tree and is applied under
// one lock together with its version bump, so readers never observe a
// half-applied change or a stale version.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/plugin"
	"github.com/stepflow/stepflow/internal/infrastructure/metrics"
	"github.com/stepflow/stepflow/pkg/validation"
)

// State is the owned application state. Create one per runtime.
type State struct {
	mu         sync.RWMutex
	workspaces []*graph.Workspace
	selected   dto.Selection
	version    int64

	registry *plugin.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an empty state. The registry is consulted to check that
// declared step types exist.
func New(registry *plugin.Registry, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = plugin.NewRegistry(logger)
	}
	return &State{
		workspaces: []*graph.Workspace{},
		registry:   registry,
		logger:     logger.Named("state"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// mutate runs fn under the write lock and bumps the version when it succeeds.
// fn must leave the tree untouched when it returns an error.
func (s *State) mutate(kind string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	s.version++
	metrics.GraphMutation(kind)
	metrics.SetStateVersion(s.version)
	s.logger.Debug("state mutated", zap.String("kind", kind), zap.Int64("version", s.version))
	return nil
}

// Version returns the change token. It grows by one per mutation.
func (s *State) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Workspaces returns deep copies of every workspace
func (s *State) Workspaces() []*graph.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWorkspaces(s.workspaces)
}

// Workspace returns a copy of the workspace with the given id
func (s *State) Workspace(id string) (*graph.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := s.workspace(id)
	if w == nil {
		return nil, graph.ErrWorkspaceNotFound
	}
	return w.Clone(), nil
}

// Snapshot returns the tree, selection and version read under one lock
func (s *State) Snapshot() ([]*graph.Workspace, dto.Selection, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWorkspaces(s.workspaces), s.selected, s.version
}

func cloneWorkspaces(in []*graph.Workspace) []*graph.Workspace {
	out := make([]*graph.Workspace, 0, len(in))
	for _, w := range in {
		out = append(out, w.Clone())
	}
	return out
}

// Replace swaps the whole tree and selection, e.g. after loading a stored
// state. The tree is validated first; a selection that no longer resolves is
// cleared.
func (s *State) Replace(items []*graph.Workspace, sel dto.Selection) error {
	if err := validation.ValidateWorkspaces(items); err != nil {
		return err
	}
	next := cloneWorkspaces(items)
	return s.mutate("replace", func() error {
		s.workspaces = next
		if s.checkSelection(sel) != nil {
			sel = dto.Selection{}
		}
		s.selected = sel
		return nil
	})
}

// lookups; callers hold the lock

func (s *State) workspace(id string) *graph.Workspace {
	for _, w := range s.workspaces {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (s *State) scenario(id string) (*graph.Workspace, *graph.Scenario) {
	for _, w := range s.workspaces {
		if sc := w.Scenario(id); sc != nil {
			return w, sc
		}
	}
	return nil, nil
}

// idInUse reports whether a workspace or scenario already uses id
func (s *State) idInUse(id string) bool {
	if s.workspace(id) != nil {
		return true
	}
	_, sc := s.scenario(id)
	return sc != nil
}

func (s *State) touch(w *graph.Workspace) {
	if w != nil {
		w.UpdatedAt = s.now()
	}
}

func newID() string {
	return uuid.NewString()
}

func (s *State) requireStepType(pluginKey string) error {
	if pluginKey == "" {
		return nil
	}
	if !s.registry.Has(plugin.Type(pluginKey)) {
		return fmt.Errorf("%w: %q", ErrUnknownStepType, pluginKey)
	}
	return nil
}
