package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries what the subcommands share once configuration is loaded.
type cli struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "finance-cli",
		Short:         "Finance document ingestion command-line interface",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			// Logs go to stderr so that stdout carries only command output.
			c.log = logger.NewWithOptions(logger.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Out:    cmd.ErrOrStderr(),
			})
			cmd.SetContext(logger.WithContext(cmd.Context(), c.log))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Show help when no subcommand is provided
			return cmd.Help()
		},
	}

	root.AddCommand(
		c.processCmd(),
		c.ingestCmd(),
		c.uploadCmd(),
		c.reparseCmd(),
		c.inspectCmd(),
		c.deleteCmd(),
		c.syncCategoriesCmd(),
	)
	return root
}

// cloud wires the BigQuery and GCS backed application.
func (c *cli) cloud(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, c.cfg, c.log)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	return a, nil
}

// withTimeout bounds the long-running ingestion commands.
func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 5*time.Minute)
}
