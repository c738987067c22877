package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/report"
	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/tabular"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered view as CSV",
	Long: `Export the filtered view as CSV in the canonical column order,
suitable for re-import.

Writes to stdout unless --out is given. Accepts the same filter flags
as 'sessions'.

Examples:
  sessionvault export --period 30d > sessions.csv
  sessionvault export --cta clicked --out converted.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFromFlags()
		if err != nil {
			return err
		}

		records, _, err := loadBatch(cmd.Context())
		if err != nil {
			return err
		}

		view := report.Apply(records, filter, time.Now())
		csv := tabular.Export(view, schema.Headers)

		if exportOut == "" {
			fmt.Print(csv)
			return nil
		}

		if err := os.WriteFile(exportOut, []byte(csv), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d session(s) to %s\n", len(view), exportOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addFilterFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
}
