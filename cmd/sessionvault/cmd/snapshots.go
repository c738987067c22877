package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	snapshotsLimit int
	snapshotsKeep  int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage archived batch snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		infos, err := s.ListSnapshots(snapshotsLimit)
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}

		if len(infos) == 0 {
			fmt.Println("No snapshots archived yet. Run 'sessionvault refresh' first.")
			return nil
		}

		fmt.Printf("%-10s %-20s %s\n", "ID", "FETCHED", "ROWS")
		for _, info := range infos {
			fmt.Printf("%-10d %-20s %d\n",
				info.ID, info.FetchedAt.Local().Format("2006-01-02 15:04:05"), info.RowCount)
		}
		return nil
	},
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshots past the retention limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep := snapshotsKeep
		if keep < 0 {
			keep = cfg.Data.KeepSnapshots
		}
		if keep <= 0 {
			return fmt.Errorf("refusing to prune everything; pass --keep N with N > 0")
		}

		s, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		pruned, err := s.Prune(keep)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}

		fmt.Printf("Pruned %d snapshot(s), keeping the %d most recent.\n", pruned, keep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)
	snapshotsListCmd.Flags().IntVar(&snapshotsLimit, "limit", 20, "maximum snapshots to list (0 = all)")
	snapshotsPruneCmd.Flags().IntVar(&snapshotsKeep, "keep", -1, "snapshots to keep (default data.keep_snapshots)")
}
