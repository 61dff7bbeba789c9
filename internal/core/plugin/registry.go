package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/pkg/validation"
)

// Registry maps step types to plugins. Registration is last-write-wins.
// A Registry is an owned value; tests and runtimes create their own.
type Registry struct {
	mu      sync.RWMutex
	plugins map[Type]*Plugin
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		plugins: make(map[Type]*Plugin),
		logger:  logger.Named("plugins"),
	}
}

// Register adds or replaces a plugin. It never fails loudly: a plugin whose
// type name is malformed or whose default config violates its own schema is
// logged and skipped. It reports whether the plugin was stored.
func (r *Registry) Register(p *Plugin) bool {
	if p == nil {
		r.logger.Error("refusing to register plugin", zap.Error(ErrNilPlugin))
		return false
	}
	if err := validation.Validate.Var(string(p.Type), "required,step_type"); err != nil {
		r.logger.Error("refusing to register plugin with invalid type",
			zap.String("type", string(p.Type)), zap.Error(err))
		return false
	}
	if err := validation.Map(p.DefaultConfig, p.ConfigSchema); err != nil {
		r.logger.Error("default config does not satisfy schema",
			zap.String("type", string(p.Type)), zap.Error(err))
		return false
	}

	stored := p.clone()
	if stored.Name == "" {
		stored.Name = string(stored.Type)
	}
	if stored.DefaultConfig == nil {
		stored.DefaultConfig = map[string]interface{}{}
	}

	r.mu.Lock()
	_, replaced := r.plugins[stored.Type]
	r.plugins[stored.Type] = stored
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("plugin replaced", zap.String("type", string(stored.Type)))
	} else {
		r.logger.Info("plugin registered",
			zap.String("type", string(stored.Type)),
			zap.String("category", string(stored.Category)))
	}
	return true
}

// Get returns the plugin for t, or nil when none is registered
func (r *Registry) Get(t Type) *Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[t]
}

// Has reports whether t is registered
func (r *Registry) Has(t Type) bool {
	return r.Get(t) != nil
}

// Resolve returns the plugin for t, or the Missing placeholder when t is
// unknown. The flag reports whether a real plugin was found.
func (r *Registry) Resolve(t Type) (*Plugin, bool) {
	if p := r.Get(t); p != nil {
		return p, true
	}
	return Missing(t), false
}

// DefaultConfig returns a copy of the default config for t; unknown types
// yield an empty map.
func (r *Registry) DefaultConfig(t Type) map[string]interface{} {
	p := r.Get(t)
	if p == nil {
		return map[string]interface{}{}
	}
	return graph.CopyMap(p.DefaultConfig)
}

// CreateDefaultStep builds a pending step of type t for the given container.
// Unknown types produce an empty-config step that renders as unavailable.
func (r *Registry) CreateDefaultStep(t Type, containerID string, order float64) *graph.Node {
	step := &graph.Node{
		ID:        uuid.NewString(),
		Order:     order,
		PluginKey: string(t),
		Config:    r.DefaultConfig(t),
		Status:    graph.StepStatusPending,
	}
	if p := r.Get(t); p != nil {
		step.Label = p.Name
	} else {
		r.logger.Warn("creating step of unregistered type",
			zap.String("type", string(t)), zap.String("containerID", containerID))
	}
	return step
}

// ValidateConfig checks cfg against the schema registered for t
func (r *Registry) ValidateConfig(t Type, cfg map[string]interface{}) error {
	p := r.Get(t)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrPluginNotFound, t)
	}
	return validation.Map(cfg, p.ConfigSchema)
}

// List returns every registered plugin ordered by type
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
