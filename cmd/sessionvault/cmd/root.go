package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/config"
	"github.com/msgroups/sessionvault/internal/fetch"
	"github.com/msgroups/sessionvault/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	homeDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sessionvault",
	Short: "Session analytics for the acquisition funnel",
	Long: `sessionvault ingests web session batches from a published sheet,
derives funnel and follow-up indicators, and serves them to the
operator dashboard.

A refresh pulls the complete batch, archives it locally, and recomputes
every derived table. Nothing is patched in place: each view is always
consistent with exactly one batch.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <home>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "data directory (default $SESSIONVAULT_HOME or ~/.sessionvault)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// newFetcher builds the fetcher for the configured source.
func newFetcher() (fetch.Fetcher, error) {
	switch cfg.Source.Mode {
	case config.SourceCSV:
		if cfg.Source.URL == "" {
			return nil, errSourceNotConfigured()
		}
		return fetch.NewCSVFetcher(cfg.Source.URL), nil
	case config.SourceJSON:
		if cfg.Source.URL == "" {
			return nil, errSourceNotConfigured()
		}
		return fetch.NewJSONFetcher(cfg.Source.URL), nil
	case config.SourceFile:
		if cfg.Source.Path == "" {
			return nil, errSourceNotConfigured()
		}
		return &fetch.FileFetcher{Path: cfg.Source.Path}, nil
	}
	return nil, fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
}

// errSourceNotConfigured explains how to point sessionvault at a source.
func errSourceNotConfigured() error {
	return fmt.Errorf(`no data source configured.

Edit %s:

  [source]
  mode = "csv"                  # csv | json | file
  url  = "https://docs.google.com/spreadsheets/d/e/.../pub?output=csv"`,
		cfg.ConfigFilePath())
}

// openArchive opens the snapshot archive, creating the schema if needed.
func openArchive() (*store.Store, error) {
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := s.InitSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}
