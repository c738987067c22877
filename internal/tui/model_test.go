package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/msgroups/sessionvault/internal/dataset"
	"github.com/msgroups/sessionvault/internal/report"
	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)

type fakeProvider struct {
	records    []session.Record
	meta       dataset.Meta
	refreshErr error
	refreshes  int
}

func (p *fakeProvider) Records() []session.Record { return p.records }
func (p *fakeProvider) Meta() dataset.Meta        { return p.meta }

func (p *fakeProvider) Refresh(ctx context.Context) (dataset.Meta, error) {
	p.refreshes++
	return p.meta, p.refreshErr
}

func record(fields map[string]string) session.Record {
	h := session.NewHydrator()
	h.Now = func() time.Time { return testNow }
	raw := session.NewRawRecord()
	for k, v := range fields {
		raw[k] = v
	}
	return h.Hydrate(raw)
}

func testProvider() *fakeProvider {
	return &fakeProvider{
		records: []session.Record{
			record(map[string]string{
				schema.FieldSessionID:  "sess-1",
				schema.FieldTSOpen:     testNow.Add(-time.Hour).Format(time.RFC3339),
				schema.FieldUTMSource:  "google",
				schema.FieldCountry:    "FR",
				schema.FieldFormEmail:  "claire@example.com",
				schema.FieldCTAClicked: "true",
				schema.FieldTSCTA:      testNow.Add(-10 * time.Minute).Format(time.RFC3339),
			}),
			record(map[string]string{
				schema.FieldSessionID: "sess-2",
				schema.FieldTSOpen:    testNow.Add(-2 * time.Hour).Format(time.RFC3339),
				schema.FieldUTMSource: "facebook",
				schema.FieldCountry:   "BE",
			}),
		},
		meta: dataset.Meta{LastSync: testNow.Add(-time.Minute), RowCount: 2},
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	return New(testProvider(), Options{Version: "test"}).
		WithClock(func() time.Time { return testNow })
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEscape}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestInitialState(t *testing.T) {
	m := newTestModel(t)
	if m.tab != tabSessions {
		t.Errorf("tab = %v, want sessions", m.tab)
	}
	if len(m.view) != 2 {
		t.Errorf("view has %d records, want 2", len(m.view))
	}
	if m.kpis.CTACount != 1 {
		t.Errorf("CTACount = %d, want 1", m.kpis.CTACount)
	}
}

func TestTabCycling(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "tab")
	if m.tab != tabAcquisition {
		t.Errorf("tab = %v after tab, want acquisition", m.tab)
	}
	if len(m.groups) != 2 {
		t.Errorf("groups = %d rows, want 2", len(m.groups))
	}

	m = press(m, "shift+tab")
	if m.tab != tabSessions {
		t.Errorf("tab = %v after shift+tab, want sessions", m.tab)
	}

	m = press(m, "shift+tab")
	if m.tab != tabAlerts {
		t.Errorf("tab = %v, want wrap-around to alerts", m.tab)
	}
}

func TestCursorMovement(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "j")
	if m.cursor != 1 {
		t.Errorf("cursor = %d after j, want 1", m.cursor)
	}
	m = press(m, "j")
	if m.cursor != 1 {
		t.Errorf("cursor = %d, must stop at the last row", m.cursor)
	}
	m = press(m, "k")
	if m.cursor != 0 {
		t.Errorf("cursor = %d after k, want 0", m.cursor)
	}
	m = press(m, "k")
	if m.cursor != 0 {
		t.Errorf("cursor = %d, must stop at the first row", m.cursor)
	}
}

func TestPeriodAndCTACycling(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "p")
	if m.filter.Period != report.PeriodToday {
		t.Errorf("period = %q, want today", m.filter.Period)
	}

	m = press(m, "c")
	if m.filter.CTA != report.CTAClickedOnly {
		t.Errorf("cta = %q, want clicked", m.filter.CTA)
	}
	if len(m.view) != 1 || m.view[0].SessionID() != "sess-1" {
		t.Errorf("view = %d records, want just the clicked session", len(m.view))
	}

	m = press(m, "x")
	if m.filter != (report.FilterSpec{}) {
		t.Errorf("filter = %+v after clear, want zero", m.filter)
	}
	if len(m.view) != 2 {
		t.Errorf("view = %d records after clear, want 2", len(m.view))
	}
}

func TestSearchFlow(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "/")
	if !m.searching {
		t.Fatal("searching = false after /")
	}

	m = press(m, "c")
	m = press(m, "l")
	m = press(m, "a")
	if m.filter.Search != "cla" {
		t.Errorf("search = %q, want cla", m.filter.Search)
	}
	if len(m.view) != 1 || m.view[0].SessionID() != "sess-1" {
		t.Errorf("view = %d records, want the matching session", len(m.view))
	}

	m = press(m, "enter")
	if m.searching {
		t.Error("searching = true after enter")
	}
	if m.filter.Search != "cla" {
		t.Errorf("search cleared by enter: %q", m.filter.Search)
	}

	m = press(m, "/")
	m = press(m, "esc")
	if m.searching || m.filter.Search != "" {
		t.Errorf("esc must clear the search, got %q", m.filter.Search)
	}
	if len(m.view) != 2 {
		t.Errorf("view = %d records after clearing search, want 2", len(m.view))
	}
}

func TestRefreshFlow(t *testing.T) {
	provider := testProvider()
	m := New(provider, Options{}).WithClock(func() time.Time { return testNow })

	next, cmd := m.handleKeys(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(Model)
	if !m.refreshing {
		t.Fatal("refreshing = false after r")
	}
	if cmd == nil {
		t.Fatal("no command issued for refresh")
	}

	next, _ = m.Update(refreshDoneMsg{meta: provider.meta})
	m = next.(Model)
	if m.refreshing {
		t.Error("refreshing = true after completion")
	}
	if m.err != nil {
		t.Errorf("err = %v", m.err)
	}
	if m.flash == "" {
		t.Error("no flash message after a successful refresh")
	}
}

func TestRefreshErrorSurfaces(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(refreshDoneMsg{err: errors.New("source unreachable")})
	m = next.(Model)

	if m.err == nil {
		t.Fatal("err = nil")
	}
	if view := m.View(); !strings.Contains(view, "source unreachable") {
		t.Error("refresh error not shown in the footer")
	}
}

func TestViewRendersTables(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"sessionvault", "sess-1", "google", "Sessions", "2 sessions"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = press(m, "tab")
	view = m.View()
	if !strings.Contains(view, "google") || !strings.Contains(view, "Rate") {
		t.Error("acquisition table not rendered")
	}

	for i := 0; i < int(tabCount); i++ {
		m = press(m, "tab")
		if m.View() == "" {
			t.Fatalf("empty view on tab %v", m.tab)
		}
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	if !m.quitting {
		t.Error("quitting = false after q")
	}
	if cmd == nil {
		t.Error("no quit command issued")
	}
}
