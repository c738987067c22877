// Package report derives views, KPIs, and grouped tables from a hydrated
// session batch. Everything here is a pure function over the batch: the
// view is recomputed in full on every filter change, never patched.
package report

import (
	"time"

	"github.com/msgroups/sessionvault/internal/session"
)

// Period selects the time window applied to a view.
type Period string

const (
	PeriodAll    Period = ""       // no window
	PeriodToday  Period = "today"  // local midnight to 23:59:59.999
	Period7Days  Period = "7d"     // now minus 7 days to now
	Period30Days Period = "30d"    // now minus 30 days to now
	PeriodCustom Period = "custom" // inclusive From/To day bounds
)

// CTAFilter is the three-way conversion switch.
type CTAFilter string

const (
	CTAAny         CTAFilter = ""        // unconstrained
	CTAClickedOnly CTAFilter = "clicked" // clicked only
	CTANotClicked  CTAFilter = "not"     // not clicked only
)

// FilterSpec describes the current view: a time window, categorical
// equality filters (empty = no constraint), the CTA switch, the derived
// mail state, and a free-text search. All active filters combine with AND.
type FilterSpec struct {
	Period Period
	From   string // yyyy-mm-dd, custom period only
	To     string // yyyy-mm-dd, custom period only

	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	Country     string
	DeviceType  string

	CTA       CTAFilter
	MailState session.MailState

	Search string
}

// Dimension is a grouping key over the view.
type Dimension int

const (
	DimensionAcquisition Dimension = iota // utm_source / utm_medium / utm_campaign
	DimensionReferrer
	DimensionDevice // device_type / os / browser
	DimensionCountry
)

func (d Dimension) String() string {
	switch d {
	case DimensionAcquisition:
		return "acquisition"
	case DimensionReferrer:
		return "referrer"
	case DimensionDevice:
		return "device"
	case DimensionCountry:
		return "country"
	default:
		return "unknown"
	}
}

// ParseDimension maps a dimension name to its Dimension, reporting
// whether the name is known.
func ParseDimension(name string) (Dimension, bool) {
	switch name {
	case "acquisition":
		return DimensionAcquisition, true
	case "referrer":
		return DimensionReferrer, true
	case "device":
		return DimensionDevice, true
	case "country":
		return DimensionCountry, true
	}
	return 0, false
}

// GroupRow is one row of a grouped table. Two records with identical
// missing fields land in the same (empty-keyed) group; grouping under
// "unknown" is intentional.
type GroupRow struct {
	Key          string
	Sessions     int
	CTAClicks    int
	CTARate      float64 // clicks / sessions, 0 when sessions is 0
	MailReceived int
}

// KPIs are the scalar indicators over the current view.
type KPIs struct {
	Total        int
	Active       int // last seen within the active window
	CTACount     int
	CTARate      float64 // 0 when Total is 0, never NaN
	MailReceived int
}

// FunnelStep is one cumulative milestone of the form funnel.
type FunnelStep struct {
	Label string
	Count int
	Share float64 // of the view total, 0 when the view is empty
}

// Funnel holds the cumulative completion milestones for a view.
type Funnel struct {
	Total int
	Steps []FunnelStep // steps >=1/2/3 then CTA
}

// QueueItem is a CTA conversion still inside the SLA window, with the
// deadline by which the follow-up mail is expected.
type QueueItem struct {
	Record   session.Record
	Deadline time.Time
}

// FilterOptions are the distinct values offered for each categorical
// filter, computed over the full batch (not the filtered view).
type FilterOptions struct {
	UTMSources   []string
	UTMMediums   []string
	UTMCampaigns []string
	Countries    []string
	DeviceTypes  []string
}

// Alert severities.
const (
	SeverityWarn = "warn"
	SeverityInfo = "info"
)

// Alert is an operator-facing condition over the current view.
type Alert struct {
	Severity string
	Text     string
}
