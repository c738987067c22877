package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show KPIs and the form funnel for the current batch",
	Long: `Show the scalar KPIs, the form-completion funnel, and any active
alerts for the current batch. Accepts the same filter flags as 'sessions'.

Examples:
  sessionvault stats
  sessionvault stats --period 7d --utm-source google`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFromFlags()
		if err != nil {
			return err
		}

		records, fetchedAt, err := loadBatch(cmd.Context())
		if err != nil {
			return err
		}

		now := time.Now()
		view := report.Apply(records, filter, now)
		kpis := report.ComputeKPIs(view, now, cfg.ActiveWindow())
		funnel := report.ComputeFunnel(view)
		alerts := report.Alerts(view)

		fmt.Printf("Batch: %d rows, fetched %s\n\n", len(records), fetchedAt.Local().Format("2006-01-02 15:04:05"))

		fmt.Printf("  Sessions:      %d\n", kpis.Total)
		fmt.Printf("  Active (%dm):  %d\n", cfg.SLA.ActiveMin, kpis.Active)
		fmt.Printf("  CTA clicks:    %d (%.1f%%)\n", kpis.CTACount, kpis.CTARate*100)
		fmt.Printf("  Mails:         %d\n", kpis.MailReceived)

		fmt.Println("\nFunnel:")
		for _, step := range funnel.Steps {
			bar := strings.Repeat("#", int(step.Share*30+0.5))
			fmt.Printf("  %-12s %5d  %5.1f%%  %s\n", step.Label, step.Count, step.Share*100, bar)
		}

		if len(alerts) > 0 {
			fmt.Println("\nAlerts:")
			for _, a := range alerts {
				fmt.Printf("  [%s] %s\n", a.Severity, a.Text)
			}
		}

		if s, err := openArchive(); err == nil {
			if stats, err := s.GetStats(); err == nil {
				fmt.Printf("\nArchive: %d snapshot(s), %d rows, %.2f MB at %s\n",
					stats.SnapshotCount, stats.RowCount,
					float64(stats.DatabaseSize)/(1024*1024), cfg.DatabasePath())
			}
			s.Close()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addFilterFlags(statsCmd)
}
