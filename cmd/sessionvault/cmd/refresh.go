package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/session"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the current batch and archive it",
	Long: `Fetch the complete session batch from the configured source, archive
it as a new snapshot, and prune old snapshots past the retention limit.

Snapshots are what 'serve' and 'tui' fall back to when the source is
unreachable. Retention is data.keep_snapshots in config.toml; 0 disables
archiving entirely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher, err := newFetcher()
		if err != nil {
			return err
		}

		start := time.Now()
		raws, err := fetcher.Fetch(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch batch: %w", err)
		}
		fetchedAt := time.Now()

		fmt.Printf("Fetched %d rows in %s\n", len(raws), time.Since(start).Round(time.Millisecond))

		if cfg.Data.KeepSnapshots <= 0 {
			fmt.Println("Archiving disabled (data.keep_snapshots = 0).")
			return nil
		}

		s, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.SaveSnapshot(raws, fetchedAt)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		pruned, err := s.Prune(cfg.Data.KeepSnapshots)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}

		fmt.Printf("Saved snapshot %d (%d rows)\n", id, len(raws))
		if pruned > 0 {
			fmt.Printf("Pruned %d old snapshot(s), keeping %d\n", pruned, cfg.Data.KeepSnapshots)
		}

		logger.Info("refresh complete", "snapshot", id, "rows", len(raws), "pruned", pruned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

// newHydrator builds a hydrator with the configured SLA window.
func newHydrator() *session.Hydrator {
	h := session.NewHydrator()
	h.MailWindow = cfg.MailWindow()
	return h
}
