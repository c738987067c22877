package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/dataset"
	"github.com/msgroups/sessionvault/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal dashboard",
	Long: `Launch the interactive terminal dashboard over the current batch.

Fetches the batch from the configured source on startup; when the source
is unreachable the latest archived snapshot is used instead, and 'r'
retries the source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher, err := newFetcher()
		if err != nil {
			return err
		}

		svc := dataset.New(fetcher, newHydrator()).WithLogger(logger)

		if _, err := svc.Refresh(cmd.Context()); err != nil {
			logger.Warn("source unreachable, trying archive", "error", err)
			s, serr := openArchive()
			if serr != nil {
				return fmt.Errorf("source unavailable (%v) and %w", err, serr)
			}
			raws, info, serr := s.LoadLatest()
			s.Close()
			if serr != nil {
				return fmt.Errorf("load snapshot: %w", serr)
			}
			if info == nil {
				return fmt.Errorf("source unavailable (%v) and no archived snapshot to fall back to", err)
			}
			svc.Replace(raws, info.FetchedAt)
			fmt.Fprintf(os.Stderr, "Source unreachable, using snapshot %d from %s\n",
				info.ID, info.FetchedAt.Local().Format("2006-01-02 15:04:05"))
		}

		model := tui.New(svc, tui.Options{
			Version:      Version,
			MailWindow:   cfg.MailWindow(),
			ActiveWindow: cfg.ActiveWindow(),
		})

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
