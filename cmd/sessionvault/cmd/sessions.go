package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msgroups/sessionvault/internal/report"
	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

var (
	sessionsPeriod   string
	sessionsFrom     string
	sessionsTo       string
	sessionsCTA      string
	sessionsMail     string
	sessionsSource   string
	sessionsMedium   string
	sessionsCampaign string
	sessionsCountry  string
	sessionsDevice   string
	sessionsSearch   string
	sessionsLimit    int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions matching the given filters",
	Long: `List sessions from the current batch, newest first.

Falls back to the latest archived snapshot when the source is unreachable.

Examples:
  sessionvault sessions --period 7d --cta clicked
  sessionvault sessions --country FR --mail notfound
  sessionvault sessions --q dupont --limit 10`,
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
		if len(view) == 0 {
			fmt.Println("No sessions match.")
			return nil
		}

		shown := view
		if sessionsLimit > 0 && len(shown) > sessionsLimit {
			shown = shown[:sessionsLimit]
		}

		fmt.Printf("%-22s %-17s %-14s %-8s %-9s %-5s %-4s %s\n",
			"SESSION", "OPENED", "SOURCE", "COUNTRY", "DEVICE", "STEPS", "CTA", "MAIL")
		for _, r := range shown {
			opened := ""
			if ts := r.OpenOrUpdate(); ts != nil {
				opened = ts.Local().Format("2006-01-02 15:04")
			}
			cta := ""
			if r.CTAClicked {
				cta = "yes"
			}
			fmt.Printf("%-22s %-17s %-14s %-8s %-9s %-5s %-4s %s\n",
				clip(r.SessionID(), 22),
				opened,
				clip(r.Get(schema.FieldUTMSource), 14),
				r.Get(schema.FieldCountry),
				r.Get(schema.FieldDeviceType),
				fmt.Sprintf("%d/3", r.StepsDone),
				cta,
				r.MailState)
		}

		if len(shown) < len(view) {
			fmt.Printf("\nShowing %d of %d matching sessions (use --limit to see more).\n", len(shown), len(view))
		} else {
			fmt.Printf("\n%d matching session(s).\n", len(view))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	addFilterFlags(sessionsCmd)
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "maximum rows to print (0 = all)")
}

// addFilterFlags registers the shared view-filter flags on a command.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sessionsPeriod, "period", "", "time window: today, 7d, 30d, or custom")
	cmd.Flags().StringVar(&sessionsFrom, "from", "", "custom window start (yyyy-mm-dd)")
	cmd.Flags().StringVar(&sessionsTo, "to", "", "custom window end (yyyy-mm-dd)")
	cmd.Flags().StringVar(&sessionsCTA, "cta", "", "conversion filter: clicked or not")
	cmd.Flags().StringVar(&sessionsMail, "mail", "", "mail state filter: pending, received, or notfound")
	cmd.Flags().StringVar(&sessionsSource, "utm-source", "", "filter by utm_source")
	cmd.Flags().StringVar(&sessionsMedium, "utm-medium", "", "filter by utm_medium")
	cmd.Flags().StringVar(&sessionsCampaign, "utm-campaign", "", "filter by utm_campaign")
	cmd.Flags().StringVar(&sessionsCountry, "country", "", "filter by country code")
	cmd.Flags().StringVar(&sessionsDevice, "device", "", "filter by device type")
	cmd.Flags().StringVar(&sessionsSearch, "q", "", "free-text search (id, name, email, whatsapp)")
}

// filterFromFlags validates the shared filter flags and builds a FilterSpec.
func filterFromFlags() (report.FilterSpec, error) {
	var f report.FilterSpec

	switch report.Period(sessionsPeriod) {
	case report.PeriodAll, report.PeriodToday, report.Period7Days, report.Period30Days:
		f.Period = report.Period(sessionsPeriod)
	case report.PeriodCustom:
		f.Period = report.PeriodCustom
		f.From = sessionsFrom
		f.To = sessionsTo
	default:
		return f, fmt.Errorf("invalid --period %q (want today, 7d, 30d, or custom)", sessionsPeriod)
	}

	switch report.CTAFilter(sessionsCTA) {
	case report.CTAAny, report.CTAClickedOnly, report.CTANotClicked:
		f.CTA = report.CTAFilter(sessionsCTA)
	default:
		return f, fmt.Errorf("invalid --cta %q (want clicked or not)", sessionsCTA)
	}

	switch session.MailState(sessionsMail) {
	case session.MailStateNone, session.MailStatePending, session.MailStateReceived, session.MailStateNotFound:
		f.MailState = session.MailState(sessionsMail)
	default:
		return f, fmt.Errorf("invalid --mail %q (want pending, received, or notfound)", sessionsMail)
	}

	f.UTMSource = sessionsSource
	f.UTMMedium = sessionsMedium
	f.UTMCampaign = sessionsCampaign
	f.Country = sessionsCountry
	f.DeviceType = sessionsDevice
	f.Search = sessionsSearch
	return f, nil
}

// clip shortens a value for fixed-width table output.
func clip(v string, max int) string {
	if len(v) <= max {
		return v
	}
	if max <= 3 {
		return v[:max]
	}
	return v[:max-3] + "..."
}
