package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stepflow/stepflow/pkg/stepflow"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stepflow %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var mode, target, edges string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an exported document with fresh identifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.rt.Import(data, stepflow.ImportOptions{
				Mode:              stepflow.ImportMode(mode),
				TargetWorkspaceID: target,
				Edges:             stepflow.EdgePolicy(edges),
				Logger:            s.logger,
			})
			if err != nil {
				return errors.New(stepflow.UserMessage(err))
			}
			if err := s.save(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Mode {
			case stepflow.ModeNewWorkspace:
				for _, w := range res.Workspaces {
					fmt.Fprintf(out, "imported workspace %s (%d scenarios)\n", w.ID, len(w.Children))
				}
			default:
				fmt.Fprintf(out, "imported %d scenarios into %s\n", len(res.Scenarios), res.TargetWorkspaceID)
			}
			if res.Dropped > 0 {
				fmt.Fprintf(out, "dropped %d unresolved references\n", res.Dropped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(stepflow.ModeNewWorkspace), "new-workspace|into-workspace")
	cmd.Flags().StringVar(&target, "target", "", "Workspace id for --mode into-workspace")
	cmd.Flags().StringVar(&edges, "edges", string(stepflow.EdgesSequential), "sequential|preserve")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the working state as an interchange document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			data, err := s.rt.Export()
			if err != nil {
				return errors.New(stepflow.UserMessage(err))
			}
			if outPath == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")
	return cmd
}

func newWorkspacesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List workspaces and their scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			items := s.rt.Workspaces()
			if len(items) == 0 {
				fmt.Fprintln(out, "no workspaces")
				return nil
			}
			for _, w := range items {
				fmt.Fprintf(out, "%s\t%s\n", w.ID, w.Title)
				for _, sc := range w.Children {
					fmt.Fprintf(out, "  %s\t%s\t%d steps\n", sc.ID, sc.Title, len(sc.Children))
				}
			}
			return nil
		},
	}
}

func newPluginsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered step types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			for _, p := range s.rt.Plugins() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.Type, p.Category, p.Name)
			}
			return nil
		},
	}
}

func newPlayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play SCENARIO",
		Short: "Play a scenario, reading answers from stdin",
		Long: "Play a scenario step by step. Interactive steps read one answer per line.\n" +
			"When input ends before the scenario completes the session is paused and\n" +
			"resumes on the next play.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return play(cmd, s, args[0])
		},
	}
}

// skipAnswer moves past the current step without answering it
const skipAnswer = ":skip"

func play(cmd *cobra.Command, s *session, scenarioID string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	view, err := s.rt.Play(ctx, scenarioID)
	if err != nil {
		return errors.New(stepflow.UserMessage(err))
	}
	printed := 0
	for {
		printed = printResults(out, s.rt.Results(), printed)
		if view.Status == stepflow.StatusCompleted {
			fmt.Fprintln(out, "scenario completed")
			return s.save(ctx)
		}
		if view.Notice != nil {
			fmt.Fprintf(out, "step %d cannot run: %s\n", view.Index+1, stepflow.UserMessage(view.Notice))
			fmt.Fprintf(out, "[%d/%d] %s to continue> ", view.Index+1, view.Total, skipAnswer)
		} else {
			fmt.Fprintf(out, "[%d/%d] %s> ", view.Index+1, view.Total, prompt(view))
		}
		if !in.Scan() {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "session paused")
			if err := s.rt.Stop(ctx, true); err != nil {
				return errors.New(stepflow.UserMessage(err))
			}
			return s.save(ctx)
		}
		answer := strings.TrimSpace(in.Text())
		var next *stepflow.StepView
		if answer == skipAnswer {
			next, err = s.rt.Skip(ctx)
		} else {
			next, err = s.rt.Submit(ctx, answer)
		}
		if err != nil && next == nil {
			// the session is gone
			if serr := s.save(ctx); serr != nil {
				return serr
			}
			return errors.New(stepflow.UserMessage(err))
		}
		if err != nil {
			fmt.Fprintln(out, stepflow.UserMessage(err))
			continue
		}
		view = next
	}
}

func prompt(view *stepflow.StepView) string {
	if view.Step == nil {
		return ""
	}
	for _, key := range []string{"prompt", "question"} {
		if s, ok := view.Step.Config[key].(string); ok && s != "" {
			if opts, ok := view.Step.Config["options"].([]interface{}); ok && key == "question" {
				parts := make([]string, 0, len(opts))
				for _, o := range opts {
					parts = append(parts, fmt.Sprint(o))
				}
				return fmt.Sprintf("%s [%s]", s, strings.Join(parts, "/"))
			}
			return s
		}
	}
	return view.PluginName
}

func printResults(out io.Writer, results []stepflow.StepResult, from int) int {
	for _, r := range results[min(from, len(results)):] {
		fmt.Fprintln(out, r.Text)
	}
	return len(results)
}

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect stored state items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newStoreListCmd(a))
	cmd.AddCommand(newStoreDeleteCmd(a))
	return cmd
}

func newStoreListCmd(a *app) *cobra.Command {
	var provider, itemType string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			items, err := s.rt.List(cmd.Context(), stepflow.Provider(provider), stepflow.Filter{Type: itemType, Limit: limit})
			if err != nil {
				return errors.New(stepflow.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			for _, it := range items {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Type, it.Format,
					it.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"), it.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", string(stepflow.ProviderLocal), "local|remote")
	cmd.Flags().StringVar(&itemType, "type", "", "Only items of this type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items")
	return cmd
}

func newStoreDeleteCmd(a *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.rt.Delete(cmd.Context(), stepflow.Provider(provider), args[0]); err != nil {
				return errors.New(stepflow.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", string(stepflow.ProviderLocal), "local|remote")
	return cmd
}
