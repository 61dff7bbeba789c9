package stepflow

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/adapters/repository/memory"
	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/app/state"
	"github.com/stepflow/stepflow/internal/app/transfer"
	"github.com/stepflow/stepflow/internal/app/usecases"
	"github.com/stepflow/stepflow/internal/core/contextstore"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/persistence"
	"github.com/stepflow/stepflow/internal/core/plugin"
	"github.com/stepflow/stepflow/internal/core/plugin/builtin"
	"github.com/stepflow/stepflow/internal/core/session"
)

// Re-export core types for convenience
type (
	Workspace     = graph.Workspace
	Scenario      = graph.Scenario
	Node          = graph.Node
	Edge          = graph.Edge
	ContextItem   = graph.ContextItem
	Selection     = dto.Selection
	Plugin        = plugin.Plugin
	PluginType    = plugin.Type
	ImportOptions = transfer.Options
	ImportMode    = transfer.Mode
	EdgePolicy    = transfer.EdgePolicy
	ImportResult  = transfer.Result
	StepView      = usecases.StepView
	StepResult    = usecases.StepResult
	Provider      = persistence.Provider
	StoredItem    = persistence.Item
	SaveOptions   = persistence.SaveOptions
	Filter        = persistence.Filter
	Adapter       = persistence.Adapter
	SessionCache  = usecases.SessionCache
	SessionStatus = session.Status
)

const (
	ModeNewWorkspace  = transfer.ModeNewWorkspace
	ModeIntoWorkspace = transfer.ModeIntoWorkspace
	EdgesSequential   = transfer.EdgesSequential
	EdgesPreserve     = transfer.EdgesPreserve

	ProviderLocal  = persistence.ProviderLocal
	ProviderRemote = persistence.ProviderRemote
	ProviderMemory = persistence.ProviderMemory

	StatusIdle      = session.StatusIdle
	StatusPlaying   = session.StatusPlaying
	StatusPaused    = session.StatusPaused
	StatusCompleted = session.StatusCompleted
)

// ErrItemNotFound is returned by Load and Delete for ids a store does not hold
var ErrItemNotFound = persistence.ErrItemNotFound

// Options configure New. Zero values select in-memory defaults.
type Options struct {
	Logger *zap.Logger
	// Stores are added next to the in-memory store
	Stores map[Provider]Adapter
	Cache  SessionCache
	// Catalog is a YAML plugin catalog applied after the built-ins
	Catalog  io.Reader
	ItemType string
}

// Runtime owns one isolated set of components
type Runtime struct {
	registry *plugin.Registry
	state    *state.State
	machine  *session.Machine
	context  *contextstore.Store
	player   *usecases.Player
	transfer *usecases.Transfer
	logger   *zap.Logger
	closers  []func() error
}

// NewRuntime constructs a default runtime with in-memory components
func NewRuntime() *Runtime {
	rt, err := New(Options{})
	if err != nil {
		// only a catalog can fail and none was given
		panic(err)
	}
	return rt
}

// New constructs a runtime from opts
func New(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := plugin.NewRegistry(logger)
	builtin.Register(reg)
	if opts.Catalog != nil {
		cat, err := plugin.LoadCatalog(opts.Catalog)
		if err != nil {
			return nil, err
		}
		n, err := cat.Apply(reg)
		if err != nil {
			return nil, fmt.Errorf("plugin catalog: %w", err)
		}
		logger.Info("plugin catalog applied", zap.Int("plugins", n))
	}

	stores := map[Provider]Adapter{ProviderMemory: memory.NewStore(memory.Config{})}
	for p, a := range opts.Stores {
		stores[p] = a
	}
	cache := opts.Cache
	if cache == nil {
		cache = memory.NewSessionCache()
	}

	st := state.New(reg, logger)
	machine := session.NewMachine(logger)
	ctxStore := contextstore.NewStore(nil)

	return &Runtime{
		registry: reg,
		state:    st,
		machine:  machine,
		context:  ctxStore,
		player: usecases.NewPlayer(usecases.PlayerConfig{
			State:    st,
			Registry: reg,
			Session:  machine,
			Context:  ctxStore,
			Cache:    cache,
			Logger:   logger,
		}),
		transfer: usecases.NewTransfer(usecases.TransferConfig{
			State:    st,
			Session:  machine,
			Stores:   stores,
			ItemType: opts.ItemType,
			Logger:   logger,
		}),
		logger: logger,
	}, nil
}

// State gives access to the entity graph operations
func (rt *Runtime) State() *state.State {
	return rt.state
}

// Registry gives access to the plugin registry
func (rt *Runtime) Registry() *plugin.Registry {
	return rt.registry
}

// Plugins lists the registered step types
func (rt *Runtime) Plugins() []*Plugin {
	return rt.registry.List()
}

// Workspaces returns a copy of every workspace
func (rt *Runtime) Workspaces() []*Workspace {
	return rt.state.Workspaces()
}

// Import merges an interchange document with fresh ids
func (rt *Runtime) Import(data []byte, opts ImportOptions) (*ImportResult, error) {
	return rt.transfer.Import(data, opts)
}

// Export encodes the current state and session
func (rt *Runtime) Export() ([]byte, error) {
	return rt.transfer.Export()
}

// Save stores the exported state with the given provider
func (rt *Runtime) Save(ctx context.Context, opts SaveOptions) (string, error) {
	return rt.transfer.SaveToStore(ctx, opts)
}

// Load replaces the state and session with a stored export
func (rt *Runtime) Load(ctx context.Context, provider Provider, id string) error {
	return rt.transfer.LoadFromStore(ctx, provider, id)
}

// List returns the items held by a provider
func (rt *Runtime) List(ctx context.Context, provider Provider, filter Filter) ([]*StoredItem, error) {
	return rt.transfer.ListStored(ctx, provider, filter)
}

// Delete removes a stored item
func (rt *Runtime) Delete(ctx context.Context, provider Provider, id string) error {
	return rt.transfer.DeleteStored(ctx, provider, id)
}

// Providers lists the configured store providers
func (rt *Runtime) Providers() []Provider {
	return rt.transfer.Providers()
}

// Play starts or resumes a scenario; an empty id plays the selection
func (rt *Runtime) Play(ctx context.Context, scenarioID string) (*StepView, error) {
	return rt.player.Play(ctx, scenarioID)
}

// Current returns the running step
func (rt *Runtime) Current(ctx context.Context) *StepView {
	return rt.player.Current(ctx)
}

// Submit answers the running step
func (rt *Runtime) Submit(ctx context.Context, answer interface{}) (*StepView, error) {
	return rt.player.Submit(ctx, answer)
}

// Skip moves past the running step without a result
func (rt *Runtime) Skip(ctx context.Context) (*StepView, error) {
	return rt.player.Skip(ctx)
}

// Stop ends the session, keeping it for a later Play when persist is set
func (rt *Runtime) Stop(ctx context.Context, persist bool) error {
	return rt.player.Stop(ctx, persist)
}

// Results renders the recorded steps of the session
func (rt *Runtime) Results() []StepResult {
	return rt.player.Results()
}

// Context returns a value from the running session's context store
func (rt *Runtime) Context(path string) interface{} {
	return rt.context.Get(path)
}

// Close releases the stores and cache opened for the runtime
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}

// ErrorKind classifies an error returned by the runtime
func ErrorKind(err error) string {
	return string(dto.KindOf(err))
}

// UserMessage returns the text to show for an error returned by the runtime
func UserMessage(err error) string {
	return dto.UserMessage(err)
}
