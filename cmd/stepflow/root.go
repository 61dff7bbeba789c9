package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/infrastructure/config"
	"github.com/stepflow/stepflow/internal/infrastructure/logging"
	"github.com/stepflow/stepflow/pkg/stepflow"
)

// app carries the persistent flags shared by every command
type app struct {
	ItemID string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "stepflow",
		Short:        "Author, import and play step-by-step scenarios",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&a.ItemID, "item", "workspace", "Local store item holding the working state")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newWorkspacesCmd(a))
	cmd.AddCommand(newPluginsCmd(a))
	cmd.AddCommand(newPlayCmd(a))
	cmd.AddCommand(newStoreCmd(a))
	return cmd
}

// session is an opened runtime with the working state loaded
type session struct {
	rt     *stepflow.Runtime
	logger *zap.Logger
	itemID string
}

// open loads the config, opens the runtime and loads the working state
// from the local store when it exists
func (a *app) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, err
	}
	rt, err := stepflow.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	s := &session{rt: rt, logger: logger, itemID: a.ItemID}
	if err := rt.Load(ctx, stepflow.ProviderLocal, a.ItemID); err != nil && !errors.Is(err, stepflow.ErrItemNotFound) {
		s.close()
		return nil, fmt.Errorf("failed to load working state: %s", stepflow.UserMessage(err))
	}
	return s, nil
}

// save writes the working state back to the local store
func (s *session) save(ctx context.Context) error {
	_, err := s.rt.Save(ctx, stepflow.SaveOptions{
		Provider:  stepflow.ProviderLocal,
		ItemID:    s.itemID,
		ItemTitle: "Working state",
	})
	if err != nil {
		return errors.New(stepflow.UserMessage(err))
	}
	return nil
}

func (s *session) close() {
	if err := s.rt.Close(); err != nil {
		s.logger.Warn("failed to close runtime", zap.Error(err))
	}
	_ = s.logger.Sync()
}
