package report

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

func TestComputeKPIs(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	view := []session.Record{
		makeRecord(now, map[string]string{
			schema.FieldSessionID:    "active",
			schema.FieldTSLastUpdate: stamp(now.Add(-5 * time.Minute)),
		}),
		makeRecord(now, map[string]string{
			schema.FieldSessionID:  "converted",
			schema.FieldTSOpen:     stamp(now.Add(-2 * time.Hour)),
			schema.FieldCTAClicked: "true",
			schema.FieldTSCTA:      stamp(now.Add(-10 * time.Minute)),
			schema.FieldLastEvent:  "mail_received",
		}),
		makeRecord(now, map[string]string{
			schema.FieldSessionID: "stale",
			schema.FieldTSOpen:    stamp(now.Add(-3 * time.Hour)),
		}),
		makeRecord(now, map[string]string{schema.FieldSessionID: "undated"}),
	}

	got := ComputeKPIs(view, now, DefaultActiveWindow)
	want := KPIs{
		Total:        4,
		Active:       1,
		CTACount:     1,
		CTARate:      0.25,
		MailReceived: 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KPIs mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeKPIsEmptyView(t *testing.T) {
	got := ComputeKPIs(nil, time.Now(), DefaultActiveWindow)
	if got.Total != 0 || got.CTARate != 0 {
		t.Errorf("empty view KPIs = %+v, want zeros", got)
	}
}

func TestGroupByAcquisition(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	google := map[string]string{
		schema.FieldUTMSource:   "google",
		schema.FieldUTMMedium:   "cpc",
		schema.FieldUTMCampaign: "summer",
	}
	view := []session.Record{
		makeRecord(now, google),
		makeRecord(now, google),
		makeRecord(now, map[string]string{
			schema.FieldUTMSource:   "google",
			schema.FieldUTMMedium:   "cpc",
			schema.FieldUTMCampaign: "summer",
			schema.FieldCTAClicked:  "true",
			schema.FieldTSCTA:       stamp(now.Add(-5 * time.Minute)),
			schema.FieldLastEvent:   "mail_received",
		}),
		makeRecord(now, map[string]string{schema.FieldUTMSource: "facebook"}),
	}

	rows := GroupBy(view, DimensionAcquisition, 0)
	want := []GroupRow{
		{Key: "google / cpc / summer", Sessions: 3, CTAClicks: 1, CTARate: 1.0 / 3.0, MailReceived: 1},
		{Key: "facebook /  / ", Sessions: 1},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByCountsSumToViewTotal(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	countries := []string{"FR", "BE", "FR", "", "CH", "FR", "BE"}
	view := make([]session.Record, 0, len(countries))
	for _, c := range countries {
		view = append(view, makeRecord(now, map[string]string{schema.FieldCountry: c}))
	}

	rows := GroupBy(view, DimensionCountry, 0)
	sum := 0
	for _, row := range rows {
		sum += row.Sessions
	}
	if sum != len(view) {
		t.Errorf("group sessions sum to %d, want %d", sum, len(view))
	}
}

func TestGroupBySortAndLimit(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	var view []session.Record
	add := func(country string, n int) {
		for i := 0; i < n; i++ {
			view = append(view, makeRecord(now, map[string]string{schema.FieldCountry: country}))
		}
	}
	add("FR", 3)
	add("BE", 1)
	add("CH", 3)
	add("DE", 2)

	rows := GroupBy(view, DimensionCountry, 0)
	wantKeys := []string{"CH", "FR", "DE", "BE"}
	for i, key := range wantKeys {
		if rows[i].Key != key {
			t.Fatalf("rows[%d].Key = %q, want %q (full: %+v)", i, rows[i].Key, key, rows)
		}
	}

	top := GroupBy(view, DimensionCountry, 2)
	if len(top) != 2 || top[0].Key != "CH" || top[1].Key != "FR" {
		t.Errorf("limited rows = %+v, want top CH, FR", top)
	}
}

func TestComputeFunnel(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	view := []session.Record{
		makeRecord(now, nil),
		makeRecord(now, map[string]string{schema.FieldFormEmail: "a@b.fr"}),
		makeRecord(now, map[string]string{
			schema.FieldFormEmail:      "c@d.fr",
			schema.FieldFormMontantEUR: "1500",
		}),
		makeRecord(now, map[string]string{
			schema.FieldFormEmail:      "e@f.fr",
			schema.FieldFormMontantEUR: "900",
			schema.FieldFormStatut:     "salarié",
			schema.FieldCTAClicked:     "true",
			schema.FieldTSCTA:          stamp(now.Add(-5 * time.Minute)),
		}),
	}

	got := ComputeFunnel(view)
	want := Funnel{
		Total: 4,
		Steps: []FunnelStep{
			{Label: "step 1", Count: 3, Share: 0.75},
			{Label: "step 2", Count: 2, Share: 0.5},
			{Label: "step 3", Count: 1, Share: 0.25},
			{Label: "cta", Count: 1, Share: 0.25},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("funnel mismatch (-want +got):\n%s", diff)
	}

	empty := ComputeFunnel(nil)
	for _, s := range empty.Steps {
		if s.Count != 0 || s.Share != 0 {
			t.Errorf("empty funnel step %q = %+v, want zeros", s.Label, s)
		}
	}
}

func TestQueue(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	view := []session.Record{
		makeRecord(now, map[string]string{
			schema.FieldSessionID:  "newest",
			schema.FieldCTAClicked: "true",
			schema.FieldTSCTA:      stamp(now.Add(-5 * time.Minute)),
		}),
		makeRecord(now, map[string]string{
			schema.FieldSessionID:  "oldest",
			schema.FieldCTAClicked: "true",
			schema.FieldTSCTA:      stamp(now.Add(-25 * time.Minute)),
		}),
		makeRecord(now, map[string]string{
			schema.FieldSessionID:  "expired",
			schema.FieldCTAClicked: "true",
			schema.FieldTSCTA:      stamp(now.Add(-45 * time.Minute)),
		}),
		makeRecord(now, map[string]string{
			schema.FieldSessionID:  "clicked without timestamp",
			schema.FieldCTAClicked: "true",
		}),
		makeRecord(now, map[string]string{schema.FieldSessionID: "idle"}),
	}

	items := Queue(view, now, session.DefaultMailWindow)
	if len(items) != 2 {
		t.Fatalf("queue length = %d, want 2", len(items))
	}
	if items[0].Record.SessionID() != "oldest" || items[1].Record.SessionID() != "newest" {
		t.Errorf("queue order = [%s %s], want oldest first",
			items[0].Record.SessionID(), items[1].Record.SessionID())
	}

	wantDeadline := now.Add(-25 * time.Minute).Add(session.DefaultMailWindow)
	if !items[0].Deadline.Equal(wantDeadline) {
		t.Errorf("Deadline = %v, want %v", items[0].Deadline, wantDeadline)
	}
}

func TestOptions(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	records := []session.Record{
		makeRecord(now, map[string]string{
			schema.FieldUTMSource:  "google",
			schema.FieldCountry:    "FR",
			schema.FieldDeviceType: "mobile",
		}),
		makeRecord(now, map[string]string{
			schema.FieldUTMSource: "facebook",
			schema.FieldCountry:   "FR",
		}),
		makeRecord(now, map[string]string{schema.FieldCountry: "BE"}),
	}

	got := Options(records)
	want := FilterOptions{
		UTMSources:  []string{"facebook", "google"},
		Countries:   []string{"BE", "FR"},
		DeviceTypes: []string{"mobile"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestAlerts(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	missed := func() session.Record {
		return makeRecord(now, map[string]string{
			schema.FieldCTAClicked: "true",
			schema.FieldTSCTA:      stamp(now.Add(-2 * time.Hour)),
		})
	}

	t.Run("quiet view", func(t *testing.T) {
		view := []session.Record{makeRecord(now, nil), missed()}
		if alerts := Alerts(view); len(alerts) != 0 {
			t.Errorf("alerts = %+v, want none", alerts)
		}
	})

	t.Run("missed follow-ups at the threshold", func(t *testing.T) {
		var view []session.Record
		for i := 0; i < 5; i++ {
			view = append(view, missed())
		}
		alerts := Alerts(view)
		if len(alerts) != 1 || alerts[0].Severity != SeverityWarn {
			t.Fatalf("alerts = %+v, want one warning", alerts)
		}
	})

	t.Run("suspect screens", func(t *testing.T) {
		view := []session.Record{
			makeRecord(now, map[string]string{schema.FieldScreenWidth: "120"}),
			makeRecord(now, map[string]string{schema.FieldScreenWidth: "1920"}),
			makeRecord(now, map[string]string{schema.FieldScreenWidth: "0"}),
		}
		alerts := Alerts(view)
		if len(alerts) != 1 {
			t.Fatalf("alerts = %+v, want one warning", alerts)
		}
	})
}
