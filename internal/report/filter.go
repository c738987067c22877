package report

import (
	"strings"
	"time"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

// Apply filters a hydrated batch down to the current view. It is pure and
// order-preserving: surviving records keep their relative order, and the
// input slice is never mutated.
func Apply(records []session.Record, f FilterSpec, now time.Time) []session.Record {
	from, to := resolveWindow(f, now)

	view := make([]session.Record, 0, len(records))
	for _, r := range records {
		if !matches(r, f, from, to) {
			continue
		}
		view = append(view, r)
	}
	return view
}

func matches(r session.Record, f FilterSpec, from, to *time.Time) bool {
	if from != nil && to != nil {
		d := r.OpenOrUpdate()
		if d == nil || d.Before(*from) || d.After(*to) {
			return false
		}
	}

	if f.UTMSource != "" && r.Get(schema.FieldUTMSource) != f.UTMSource {
		return false
	}
	if f.UTMMedium != "" && r.Get(schema.FieldUTMMedium) != f.UTMMedium {
		return false
	}
	if f.UTMCampaign != "" && r.Get(schema.FieldUTMCampaign) != f.UTMCampaign {
		return false
	}
	if f.Country != "" && r.Get(schema.FieldCountry) != f.Country {
		return false
	}
	if f.DeviceType != "" && r.Get(schema.FieldDeviceType) != f.DeviceType {
		return false
	}

	switch f.CTA {
	case CTAClickedOnly:
		if !r.CTAClicked {
			return false
		}
	case CTANotClicked:
		if r.CTAClicked {
			return false
		}
	}

	if f.MailState != "" && r.MailState != f.MailState {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !searchMatch(r, q) {
			return false
		}
	}

	return true
}

// searchFields are the columns probed by the free-text search.
var searchFields = []string{
	schema.FieldSessionID,
	schema.FieldFormNom,
	schema.FieldFormPrenom,
	schema.FieldFormEmail,
	schema.FieldFormWhatsapp,
}

func searchMatch(r session.Record, q string) bool {
	for _, field := range searchFields {
		if strings.Contains(strings.ToLower(r.Get(field)), q) {
			return true
		}
	}
	return false
}

// resolveWindow turns the period selection into inclusive bounds, in
// local time, independent of the other filters. Nil bounds mean no
// window is active.
func resolveWindow(f FilterSpec, now time.Time) (*time.Time, *time.Time) {
	switch f.Period {
	case PeriodToday:
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		to := from.Add(24*time.Hour - time.Millisecond)
		return &from, &to
	case Period7Days:
		from := now.Add(-7 * 24 * time.Hour)
		return &from, &now
	case Period30Days:
		from := now.Add(-30 * 24 * time.Hour)
		return &from, &now
	case PeriodCustom:
		fromDay := session.ParseDate(f.From)
		toDay := session.ParseDate(f.To)
		if fromDay == nil || toDay == nil {
			return nil, nil
		}
		from := time.Date(fromDay.Year(), fromDay.Month(), fromDay.Day(), 0, 0, 0, 0, time.Local)
		to := time.Date(toDay.Year(), toDay.Month(), toDay.Day(), 23, 59, 59, 0, time.Local)
		return &from, &to
	}
	return nil, nil
}
