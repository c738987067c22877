package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

// DefaultActiveWindow bounds the "active sessions" KPI: a session counts
// as active when its last seen timestamp is within this window.
const DefaultActiveWindow = 15 * time.Minute

// groupKeySep joins the fields of a composite grouping key. Missing
// fields join as empty strings so records missing the same fields share
// a group.
const groupKeySep = " / "

// ComputeKPIs computes the scalar indicators over a view.
func ComputeKPIs(view []session.Record, now time.Time, activeWindow time.Duration) KPIs {
	k := KPIs{Total: len(view)}
	for _, r := range view {
		if seen := r.LastSeen(); seen != nil && now.Sub(*seen) <= activeWindow {
			k.Active++
		}
		if r.CTAClicked {
			k.CTACount++
		}
		if r.MailState == session.MailStateReceived {
			k.MailReceived++
		}
	}
	k.CTARate = rate(k.CTACount, k.Total)
	return k
}

// GroupBy groups the view along a dimension and computes per-group
// counts and rates. Rows are sorted by session count descending, then by
// key, so results are deterministic. A limit > 0 truncates to the top
// rows after sorting; the per-group invariant (counts sum to the view
// total) holds only for the untruncated result.
func GroupBy(view []session.Record, dim Dimension, limit int) []GroupRow {
	index := make(map[string]*GroupRow)
	order := make([]string, 0)

	for _, r := range view {
		key := groupKey(r, dim)
		row, ok := index[key]
		if !ok {
			row = &GroupRow{Key: key}
			index[key] = row
			order = append(order, key)
		}
		row.Sessions++
		if r.CTAClicked {
			row.CTAClicks++
		}
		if r.MailState == session.MailStateReceived {
			row.MailReceived++
		}
	}

	rows := make([]GroupRow, 0, len(order))
	for _, key := range order {
		row := index[key]
		row.CTARate = rate(row.CTAClicks, row.Sessions)
		rows = append(rows, *row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Sessions != rows[j].Sessions {
			return rows[i].Sessions > rows[j].Sessions
		}
		return rows[i].Key < rows[j].Key
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func groupKey(r session.Record, dim Dimension) string {
	switch dim {
	case DimensionAcquisition:
		return r.Get(schema.FieldUTMSource) + groupKeySep +
			r.Get(schema.FieldUTMMedium) + groupKeySep +
			r.Get(schema.FieldUTMCampaign)
	case DimensionReferrer:
		return r.Get(schema.FieldReferrer)
	case DimensionDevice:
		return r.Get(schema.FieldDeviceType) + groupKeySep +
			r.Get(schema.FieldOS) + groupKeySep +
			r.Get(schema.FieldBrowser)
	case DimensionCountry:
		return r.Get(schema.FieldCountry)
	default:
		return ""
	}
}

// ComputeFunnel computes cumulative completion milestones over the view.
func ComputeFunnel(view []session.Record) Funnel {
	total := len(view)
	var s1, s2, s3, cta int
	for _, r := range view {
		if r.StepsDone >= 1 {
			s1++
		}
		if r.StepsDone >= 2 {
			s2++
		}
		if r.StepsDone >= 3 {
			s3++
		}
		if r.CTAClicked {
			cta++
		}
	}
	return Funnel{
		Total: total,
		Steps: []FunnelStep{
			{Label: "step 1", Count: s1, Share: rate(s1, total)},
			{Label: "step 2", Count: s2, Share: rate(s2, total)},
			{Label: "step 3", Count: s3, Share: rate(s3, total)},
			{Label: "cta", Count: cta, Share: rate(cta, total)},
		},
	}
}

// Queue returns the CTA conversions still inside the SLA window, oldest
// deadline first.
func Queue(view []session.Record, now time.Time, window time.Duration) []QueueItem {
	var items []QueueItem
	for _, r := range view {
		if !r.CTAClicked || r.TSCTA == nil {
			continue
		}
		if now.Sub(*r.TSCTA) > window {
			continue
		}
		items = append(items, QueueItem{
			Record:   r,
			Deadline: r.TSCTA.Add(window),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Record.TSCTA.Before(*items[j].Record.TSCTA)
	})
	return items
}

// Options collects the distinct non-empty values for each categorical
// filter over the full batch, sorted, for dropdown population.
func Options(records []session.Record) FilterOptions {
	return FilterOptions{
		UTMSources:   distinct(records, schema.FieldUTMSource),
		UTMMediums:   distinct(records, schema.FieldUTMMedium),
		UTMCampaigns: distinct(records, schema.FieldUTMCampaign),
		Countries:    distinct(records, schema.FieldCountry),
		DeviceTypes:  distinct(records, schema.FieldDeviceType),
	}
}

func distinct(records []session.Record, field string) []string {
	seen := make(map[string]struct{})
	var values []string
	for _, r := range records {
		v := r.Get(field)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Alert thresholds.
const (
	alertNotFoundMin   = 5   // missed follow-ups before alerting
	alertSuspectScreen = 240 // screens narrower than this are suspect
)

// Alerts evaluates operator-facing conditions over the current view.
func Alerts(view []session.Record) []Alert {
	var alerts []Alert

	notFound := 0
	for _, r := range view {
		if r.MailState == session.MailStateNotFound {
			notFound++
		}
	}
	if notFound >= alertNotFoundMin {
		alerts = append(alerts, Alert{
			Severity: SeverityWarn,
			Text:     fmt.Sprintf("%d follow-up mails not received past the SLA window", notFound),
		})
	}

	suspect := 0
	for _, r := range view {
		if w := r.ScreenWidth; w != nil && *w > 0 && *w < alertSuspectScreen {
			suspect++
		}
	}
	if suspect > 0 {
		alerts = append(alerts, Alert{
			Severity: SeverityWarn,
			Text:     fmt.Sprintf("%d sessions report suspect screens (<%dpx)", suspect, alertSuspectScreen),
		})
	}

	return alerts
}

// rate returns part/total as a fraction, 0 when total is 0.
func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
