package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ListingsAggregator/internal/app"
	"ListingsAggregator/internal/config"
	"ListingsAggregator/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliState struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	var (
		cfgFile string
		rt      cliState
	)

	root := &cobra.Command{
		Use:           "listingsaggregator",
		Short:         "Aggregate job listings from external sources into one store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				if err := os.Setenv("LISTINGS_AGGREGATOR_CONFIG", cfgFile); err != nil {
					return err
				}
			}
			rt.cfg = config.Load()
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			rt.logger = logging.New(rt.cfg.Logging.Level, rt.cfg.Logging.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the YAML config file")

	root.AddCommand(
		serveCommand(&rt),
		aggregateCommand(&rt),
		reapCommand(&rt),
		migrateCommand(&rt),
	)
	return root
}

func serveCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(cmd.Context())
		},
	}
}

func aggregateCommand(rt *cliState) *cobra.Command {
	var (
		keywords, location string
		sources            []string
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run one aggregation and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Aggregate(cmd.Context(), keywords, location, sources...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVarP(&keywords, "keywords", "k", "", "search keywords")
	cmd.Flags().StringVarP(&location, "location", "l", "", "search location")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "run only these sources (repeatable or comma separated)")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}

func reapCommand(rt *cliState) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Delete external listings not refreshed within the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			removed, err := application.Reap(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale listings\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (defaults to aggregation.retentionDays)")
	return cmd
}

func migrateCommand(rt *cliState) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.MigrateDatabase(cmd.Context(), rt.cfg, down, rt.logger.With("component", "migrate"))
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	return cmd
}
