package stepflow

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	rediscache "github.com/stepflow/stepflow/internal/adapters/cache/redis"
	"github.com/stepflow/stepflow/internal/adapters/repository/postgres"
	"github.com/stepflow/stepflow/internal/adapters/repository/sqlite"
	"github.com/stepflow/stepflow/internal/infrastructure/config"
)

// Open builds a runtime from cfg: the local sqlite store is always opened,
// the remote postgres store and the redis session cache only when configured.
// Close the runtime to release them.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	serializer, err := cfg.Serializer()
	if err != nil {
		return nil, err
	}

	var closers []func() error
	fail := func(err error) (*Runtime, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	opts := Options{Logger: logger, Stores: map[Provider]Adapter{}, ItemType: cfg.Store.StateItem}

	local, err := sqlite.Open(ctx, cfg.Store.LocalDB, serializer)
	if err != nil {
		return fail(fmt.Errorf("failed to open local store: %w", err))
	}
	closers = append(closers, local.Close)
	opts.Stores[ProviderLocal] = local

	if cfg.RemoteEnabled() {
		remote, err := postgres.Connect(ctx, cfg.Store.RemoteDSN, serializer)
		if err != nil {
			return fail(fmt.Errorf("failed to connect remote store: %w", err))
		}
		closers = append(closers, func() error { remote.Close(); return nil })
		opts.Stores[ProviderRemote] = remote
	}

	if cfg.SessionCacheEnabled() {
		cache, err := rediscache.Connect(ctx, cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return fail(fmt.Errorf("failed to connect session cache: %w", err))
		}
		closers = append(closers, cache.Close)
		opts.Cache = cache
	}

	if cfg.PluginCatalog != "" {
		f, err := os.Open(cfg.PluginCatalog)
		if err != nil {
			return fail(fmt.Errorf("failed to open plugin catalog: %w", err))
		}
		defer f.Close()
		opts.Catalog = f
	}

	rt, err := New(opts)
	if err != nil {
		return fail(err)
	}
	rt.closers = closers
	logger.Info("runtime opened",
		zap.String("localDB", cfg.Store.LocalDB),
		zap.Bool("remote", cfg.RemoteEnabled()),
		zap.Bool("sessionCache", cfg.SessionCacheEnabled()),
		zap.String("format", serializer.Format()))
	return rt, nil
}
