package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/app/state"
	"github.com/stepflow/stepflow/internal/app/transfer"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/persistence"
	"github.com/stepflow/stepflow/internal/core/session"
)

// TransferConfig wires a Transfer
type TransferConfig struct {
	State   *state.State
	Session *session.Machine
	Stores  map[persistence.Provider]persistence.Adapter
	// ItemType tags saved state items; defaults to persistence.DefaultItemType
	ItemType string
	Logger   *zap.Logger
}

// Transfer moves state between the live graph, interchange documents and
// the persistence adapters. Nothing is applied to the graph unless the whole
// operation succeeded.
type Transfer struct {
	state    *state.State
	machine  *session.Machine
	stores   map[persistence.Provider]persistence.Adapter
	itemType string
	logger   *zap.Logger
}

// NewTransfer creates a Transfer
func NewTransfer(cfg TransferConfig) *Transfer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	st := cfg.State
	if st == nil {
		st = state.New(nil, logger)
	}
	machine := cfg.Session
	if machine == nil {
		machine = session.NewMachine(logger)
	}
	itemType := cfg.ItemType
	if itemType == "" {
		itemType = persistence.DefaultItemType
	}
	stores := make(map[persistence.Provider]persistence.Adapter, len(cfg.Stores))
	for p, a := range cfg.Stores {
		if a != nil {
			stores[p] = a
		}
	}
	return &Transfer{
		state:    st,
		machine:  machine,
		stores:   stores,
		itemType: itemType,
		logger:   logger.Named("transfer"),
	}
}

// Import parses data, reconciles it with fresh ids and merges the result.
// Parse failures are reported before any remapping starts.
func (t *Transfer) Import(data []byte, opts transfer.Options) (*transfer.Result, error) {
	const op = "import"
	p, err := transfer.Parse(data)
	if err != nil {
		return nil, dto.Errorf(dto.KindParse, op, err, "could not read import file")
	}
	if opts.Logger == nil {
		opts.Logger = t.logger
	}
	res, err := transfer.Reconcile(p, opts)
	switch {
	case errors.Is(err, transfer.ErrNoScenarios):
		return nil, dto.Errorf(dto.KindIntegrity, op, err, "no scenarios found")
	case errors.Is(err, transfer.ErrNoTarget), errors.Is(err, transfer.ErrUnknownMode), errors.Is(err, transfer.ErrUnknownPolicy):
		return nil, dto.NewError(dto.KindConfiguration, op, err)
	case err != nil:
		return nil, dto.NewError(dto.KindIntegrity, op, err)
	}
	if err := t.state.ApplyImport(res); err != nil {
		if errors.Is(err, graph.ErrWorkspaceNotFound) {
			return nil, dto.Errorf(dto.KindConfiguration, op, err, "target workspace %q", opts.TargetWorkspaceID)
		}
		return nil, dto.NewError(dto.KindIntegrity, op, err)
	}
	t.logger.Info("import applied",
		zap.String("mode", string(res.Mode)),
		zap.Int("scenarios", p.ScenarioCount()),
		zap.Int64("stateVersion", t.state.Version()))
	return res, nil
}

// Export encodes the live state in the nested interchange shape
func (t *Transfer) Export() ([]byte, error) {
	items, sel, version := t.state.Snapshot()
	out, err := transfer.Export(items, sel, version, t.machine.Snapshot())
	if err != nil {
		return nil, dto.NewError(dto.KindIntegrity, "export", err)
	}
	return out, nil
}

// SaveToStore exports the state and saves it through the adapter named by
// opts.Provider. It returns the stored item id.
func (t *Transfer) SaveToStore(ctx context.Context, opts persistence.SaveOptions) (string, error) {
	const op = "save"
	if opts.ItemType == "" {
		opts.ItemType = t.itemType
	}
	if err := opts.Validate(); err != nil {
		return "", dto.NewError(dto.KindConfiguration, op, err)
	}
	adapter, err := t.adapter(opts.Provider)
	if err != nil {
		return "", dto.NewError(dto.KindConfiguration, op, err)
	}
	data, err := t.Export()
	if err != nil {
		return "", err
	}
	id, err := adapter.SaveData(ctx, opts, data)
	if err != nil {
		return "", dto.Errorf(dto.KindIO, op, err, "failed to save to %s store", opts.Provider)
	}
	t.logger.Info("state saved", zap.String("provider", string(opts.Provider)), zap.String("itemID", id))
	return id, nil
}

// LoadFromStore replaces the live state and session with a stored document.
// The document is fully validated before anything is replaced.
func (t *Transfer) LoadFromStore(ctx context.Context, provider persistence.Provider, id string) error {
	const op = "load"
	adapter, err := t.adapter(provider)
	if err != nil {
		return dto.NewError(dto.KindConfiguration, op, err)
	}
	data, err := adapter.RetrieveData(ctx, id)
	if err != nil {
		return dto.Errorf(dto.KindIO, op, err, "failed to load %q from %s store", id, provider)
	}
	p, err := transfer.Parse(data)
	if err != nil {
		return dto.Errorf(dto.KindParse, op, err, "stored item %q is not a state document", id)
	}
	if p.FlowSession != nil {
		if err := session.NewMachine(nil).Restore(*p.FlowSession); err != nil {
			return dto.NewError(dto.KindIntegrity, op, err)
		}
	}
	if err := t.state.Replace(p.Items, p.Selected); err != nil {
		return dto.NewError(dto.KindIntegrity, op, err)
	}
	if p.FlowSession != nil {
		// validated above
		_ = t.machine.Restore(*p.FlowSession)
	} else {
		t.machine.Reset()
	}
	t.logger.Info("state loaded", zap.String("provider", string(provider)), zap.String("itemID", id))
	return nil
}

// ListStored lists the items of one provider
func (t *Transfer) ListStored(ctx context.Context, provider persistence.Provider, filter persistence.Filter) ([]*persistence.Item, error) {
	const op = "list"
	adapter, err := t.adapter(provider)
	if err != nil {
		return nil, dto.NewError(dto.KindConfiguration, op, err)
	}
	items, err := adapter.ListItems(ctx, filter)
	if err != nil {
		return nil, dto.Errorf(dto.KindIO, op, err, "failed to list %s store", provider)
	}
	return items, nil
}

// DeleteStored removes one item from a provider
func (t *Transfer) DeleteStored(ctx context.Context, provider persistence.Provider, id string) error {
	const op = "delete"
	adapter, err := t.adapter(provider)
	if err != nil {
		return dto.NewError(dto.KindConfiguration, op, err)
	}
	if err := adapter.DeleteItem(ctx, id); err != nil {
		return dto.Errorf(dto.KindIO, op, err, "failed to delete %q from %s store", id, provider)
	}
	return nil
}

// Providers returns the configured providers in name order
func (t *Transfer) Providers() []persistence.Provider {
	out := make([]persistence.Provider, 0, len(t.stores))
	for p := range t.stores {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *Transfer) adapter(p persistence.Provider) (persistence.Adapter, error) {
	a, ok := t.stores[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", persistence.ErrUnknownProvider, p)
	}
	return a, nil
}
