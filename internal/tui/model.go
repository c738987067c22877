// Package tui provides the terminal dashboard for sessionvault.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/msgroups/sessionvault/internal/dataset"
	"github.com/msgroups/sessionvault/internal/report"
	"github.com/msgroups/sessionvault/internal/session"
)

// Provider is the data access the dashboard needs. *dataset.Service
// satisfies it.
type Provider interface {
	Records() []session.Record
	Meta() dataset.Meta
	Refresh(ctx context.Context) (dataset.Meta, error)
}

// Options configuration for the dashboard.
type Options struct {
	Version      string
	MailWindow   time.Duration
	ActiveWindow time.Duration
}

// tab identifies one dashboard pane.
type tab int

const (
	tabSessions tab = iota
	tabAcquisition
	tabReferrers
	tabDevices
	tabCountries
	tabFunnel
	tabQueue
	tabAlerts
	tabCount // sentinel
)

func (t tab) String() string {
	switch t {
	case tabSessions:
		return "Sessions"
	case tabAcquisition:
		return "Acquisition"
	case tabReferrers:
		return "Referrers"
	case tabDevices:
		return "Devices"
	case tabCountries:
		return "Countries"
	case tabFunnel:
		return "Funnel"
	case tabQueue:
		return "Queue"
	case tabAlerts:
		return "Alerts"
	default:
		return "?"
	}
}

// dimensionFor maps a grouped tab to its report dimension.
func dimensionFor(t tab) (report.Dimension, bool) {
	switch t {
	case tabAcquisition:
		return report.DimensionAcquisition, true
	case tabReferrers:
		return report.DimensionReferrer, true
	case tabDevices:
		return report.DimensionDevice, true
	case tabCountries:
		return report.DimensionCountry, true
	}
	return 0, false
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	provider Provider
	opts     Options
	now      func() time.Time

	width  int
	height int

	tab    tab
	cursor int
	offset int

	filter      report.FilterSpec
	searchInput textinput.Model
	searching   bool

	// derived every recompute
	view    []session.Record
	kpis    report.KPIs
	groups  []report.GroupRow
	funnel  report.Funnel
	queue   []report.QueueItem
	alerts  []report.Alert
	meta    dataset.Meta

	refreshing    bool
	spinnerFrame  int
	spinnerActive bool
	flash         string
	err           error
	quitting      bool
}

// New creates a dashboard model around the given provider.
func New(provider Provider, opts Options) Model {
	if opts.MailWindow <= 0 {
		opts.MailWindow = session.DefaultMailWindow
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = report.DefaultActiveWindow
	}

	input := textinput.New()
	input.Placeholder = "search id, name, email, whatsapp"
	input.CharLimit = 120
	input.Width = 40

	m := Model{
		provider:    provider,
		opts:        opts,
		now:         time.Now,
		searchInput: input,
		width:       100,
		height:      30,
	}
	m.recompute()
	return m
}

// WithClock sets the time source, mockable for testing.
func (m Model) WithClock(now func() time.Time) Model {
	m.now = now
	m.recompute()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// recompute rebuilds every derived table from the current batch and
// filter. Cheap enough to run on any state change.
func (m *Model) recompute() {
	now := m.now()
	records := m.provider.Records()

	m.view = report.Apply(records, m.filter, now)
	m.kpis = report.ComputeKPIs(m.view, now, m.opts.ActiveWindow)
	m.funnel = report.ComputeFunnel(m.view)
	m.queue = report.Queue(m.view, now, m.opts.MailWindow)
	m.alerts = report.Alerts(m.view)
	m.meta = m.provider.Meta()

	if dim, ok := dimensionFor(m.tab); ok {
		m.groups = report.GroupBy(m.view, dim, 0)
	} else {
		m.groups = nil
	}

	if max := m.rowCount() - 1; m.cursor > max {
		m.cursor = 0
		m.offset = 0
	}
}

// rowCount returns how many rows the active tab can scroll over.
func (m Model) rowCount() int {
	switch m.tab {
	case tabSessions:
		return len(m.view)
	case tabFunnel:
		return len(m.funnel.Steps)
	case tabQueue:
		return len(m.queue)
	case tabAlerts:
		return len(m.alerts)
	default:
		return len(m.groups)
	}
}

// refreshDoneMsg reports the outcome of an async refresh.
type refreshDoneMsg struct {
	meta dataset.Meta
	err  error
}

// spinnerTickMsg advances the loading spinner.
type spinnerTickMsg struct{}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m Model) startRefresh() (Model, tea.Cmd) {
	if m.refreshing {
		return m, nil
	}
	m.refreshing = true
	m.spinnerActive = true
	m.flash = ""
	provider := m.provider
	refresh := func() tea.Msg {
		meta, err := provider.Refresh(context.Background())
		return refreshDoneMsg{meta: meta, err: err}
	}
	return m, tea.Batch(refresh, spinnerTick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinnerTickMsg:
		if !m.refreshing {
			m.spinnerActive = false
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, spinnerTick()

	case refreshDoneMsg:
		m.refreshing = false
		m.err = msg.err
		if msg.err == nil {
			m.flash = "refreshed"
		}
		m.recompute()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		return m.handleKeys(msg)
	}

	return m, nil
}

// handleSearchKeys handles keys while the search bar has focus.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.filter.Search = ""
		m.recompute()
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.filter.Search = m.searchInput.Value()
		m.recompute()
		return m, cmd
	}
}

// handleKeys handles keys in browse mode.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "right", "l":
		m.tab = (m.tab + 1) % tabCount
		m.cursor, m.offset = 0, 0
		m.recompute()

	case "shift+tab", "left", "h":
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.cursor, m.offset = 0, 0
		m.recompute()

	case "down", "j":
		if m.cursor < m.rowCount()-1 {
			m.cursor++
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "g", "home":
		m.cursor, m.offset = 0, 0

	case "G", "end":
		if n := m.rowCount(); n > 0 {
			m.cursor = n - 1
		}

	case "/":
		m.searching = true
		m.searchInput.Focus()

	case "p":
		m.filter.Period = nextPeriod(m.filter.Period)
		m.recompute()

	case "c":
		m.filter.CTA = nextCTA(m.filter.CTA)
		m.recompute()

	case "m":
		m.filter.MailState = nextMailState(m.filter.MailState)
		m.recompute()

	case "x":
		m.filter = report.FilterSpec{}
		m.searchInput.SetValue("")
		m.recompute()

	case "r":
		return m.startRefresh()
	}

	m.clampScroll()
	return m, nil
}

// clampScroll keeps the cursor inside the visible window.
func (m *Model) clampScroll() {
	visible := m.tableHeight()
	if visible < 1 {
		visible = 1
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// nextPeriod cycles all -> today -> 7d -> 30d -> all.
func nextPeriod(p report.Period) report.Period {
	switch p {
	case report.PeriodAll:
		return report.PeriodToday
	case report.PeriodToday:
		return report.Period7Days
	case report.Period7Days:
		return report.Period30Days
	default:
		return report.PeriodAll
	}
}

// nextCTA cycles any -> clicked -> not -> any.
func nextCTA(c report.CTAFilter) report.CTAFilter {
	switch c {
	case report.CTAAny:
		return report.CTAClickedOnly
	case report.CTAClickedOnly:
		return report.CTANotClicked
	default:
		return report.CTAAny
	}
}

// nextMailState cycles any -> pending -> received -> notfound -> any.
func nextMailState(s session.MailState) session.MailState {
	switch s {
	case session.MailStateNone:
		return session.MailStatePending
	case session.MailStatePending:
		return session.MailStateReceived
	case session.MailStateReceived:
		return session.MailStateNotFound
	default:
		return session.MailStateNone
	}
}
