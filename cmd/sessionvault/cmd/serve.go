package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/api"
	"github.com/msgroups/sessionvault/internal/dataset"
	"github.com/msgroups/sessionvault/internal/scheduler"
	"github.com/msgroups/sessionvault/internal/session"
	"github.com/msgroups/sessionvault/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sessionvault as a daemon with scheduled refreshes",
	Long: `Run sessionvault as a long-running daemon that refreshes the batch on
schedule and serves it to the dashboard.

The daemon runs in the foreground and performs:
  - HTTP API server on the configured port (default: 8080)
  - Scheduled batch refreshes from the configured source
  - Snapshot archiving after each successful refresh

Configure the schedule in config.toml:
  [refresh]
  schedule = "*/5 * * * *"   # every 5 minutes (cron format)
  enabled = true

Cron format: minute hour day-of-month month day-of-week
  Examples:
    */5 * * * *   = Every 5 minutes
    0 * * * *     = On the hour
    0 7-19 * * *  = Hourly during business hours

Use Ctrl+C to stop the daemon gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	fetcher, err := newFetcher()
	if err != nil {
		return err
	}

	s, err := openArchive()
	if err != nil {
		return err
	}
	defer s.Close()

	svc := dataset.New(fetcher, newHydrator()).WithLogger(logger)

	// Seed from the latest snapshot so the API serves data immediately,
	// even before the first refresh completes.
	if raws, info, err := s.LoadLatest(); err != nil {
		logger.Warn("could not load latest snapshot", "error", err)
	} else if info != nil {
		meta := svc.Replace(raws, info.FetchedAt)
		logger.Info("seeded from snapshot", "snapshot", info.ID, "rows", meta.RowCount)
	}

	sched := scheduler.New(func(ctx context.Context) error {
		return refreshAndArchive(ctx, svc, s)
	}).WithLogger(logger)

	if cfg.Refresh.Enabled {
		if cfg.Refresh.Schedule == "" {
			return fmt.Errorf("refresh.enabled is true but refresh.schedule is empty")
		}
		if err := sched.SetSchedule(cfg.Refresh.Schedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", cfg.Refresh.Schedule, err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sched.Start()

	apiServer := api.NewServer(cfg, svc, sched, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// First refresh in the background so startup is not blocked by a slow
	// or unreachable source.
	go func() {
		if err := sched.Trigger(); err != nil {
			logger.Warn("initial refresh not started", "error", err)
		}
	}()

	bindAddr := cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	fmt.Printf("sessionvault daemon started\n")
	fmt.Printf("  API server:     http://%s\n", net.JoinHostPort(bindAddr, strconv.Itoa(cfg.Server.APIPort)))
	fmt.Printf("  Data directory: %s\n", cfg.Data.DataDir)
	if cfg.Refresh.Enabled {
		status := sched.Status()
		fmt.Printf("  Refresh:        %s, next run at %s\n",
			cfg.Refresh.Schedule, status.NextRun.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("  Refresh:        manual (POST /api/v1/refresh)\n")
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		fmt.Printf("\nAPI server error: %v\n", err)
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	fmt.Println("Shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}

	fmt.Println("Waiting for a running refresh to complete...")
	schedCtx := sched.Stop()

	select {
	case <-schedCtx.Done():
		fmt.Println("Shutdown complete.")
	case <-time.After(30 * time.Second):
		fmt.Println("Shutdown timed out after 30 seconds.")
	}

	return nil
}

// refreshAndArchive refreshes the in-memory batch and, when archiving is
// enabled, saves the new batch as a snapshot and prunes old ones.
func refreshAndArchive(ctx context.Context, svc *dataset.Service, s *store.Store) error {
	meta, err := svc.Refresh(ctx)
	if err != nil {
		if errors.Is(err, dataset.ErrSuperseded) {
			return nil
		}
		return err
	}

	if cfg.Data.KeepSnapshots <= 0 {
		return nil
	}

	records := svc.Records()
	raws := make([]session.RawRecord, len(records))
	for i, r := range records {
		raws[i] = r.Raw
	}

	if _, err := s.SaveSnapshot(raws, meta.LastSync); err != nil {
		logger.Error("snapshot save failed", "error", err)
		return nil
	}
	if _, err := s.Prune(cfg.Data.KeepSnapshots); err != nil {
		logger.Error("snapshot prune failed", "error", err)
	}
	return nil
}
