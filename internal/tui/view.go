package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/msgroups/sessionvault/internal/schema"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	kpiStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	inactiveTabStyle = lipgloss.NewStyle().
				Faint(true)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"})

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)
)

// chromeLines is the fixed vertical space around the table: title, KPI
// line, tab bar, header row, and footer.
const chromeLines = 6

// tableHeight returns how many data rows fit in the current terminal.
func (m Model) tableHeight() int {
	h := m.height - chromeLines
	if m.searching || m.filter.Search != "" {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderTitle())
	b.WriteString("\n")
	b.WriteString(m.renderKPIs())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	if m.searching || m.filter.Search != "" {
		b.WriteString("  / " + m.searchInput.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderTable())
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderTitle() string {
	title := "sessionvault"
	if m.opts.Version != "" {
		title += " " + m.opts.Version
	}
	if m.refreshing {
		title += "  " + spinnerFrames[m.spinnerFrame] + " refreshing"
	} else if !m.meta.LastSync.IsZero() {
		title += "  synced " + m.meta.LastSync.Format("15:04:05")
	}
	return titleBarStyle.Width(m.width).Render(title)
}

func (m Model) renderKPIs() string {
	line := fmt.Sprintf("%d sessions · %d active · %d CTA (%s) · %d mails",
		m.kpis.Total, m.kpis.Active, m.kpis.CTACount,
		fmtPercent(m.kpis.CTARate), m.kpis.MailReceived)
	if f := m.filterSummary(); f != "" {
		line += "   [" + f + "]"
	}
	if m.meta.IngestionErrors > 0 {
		line += "   " + warnStyle.Render(fmt.Sprintf("%d failed refreshes", m.meta.IngestionErrors))
	}
	return kpiStyle.Width(m.width).Render(line)
}

// filterSummary names the active filters for the KPI line.
func (m Model) filterSummary() string {
	var parts []string
	if m.filter.Period != "" {
		parts = append(parts, string(m.filter.Period))
	}
	if m.filter.CTA != "" {
		parts = append(parts, "cta:"+string(m.filter.CTA))
	}
	if m.filter.MailState != "" {
		parts = append(parts, "mail:"+string(m.filter.MailState))
	}
	if m.filter.Search != "" {
		parts = append(parts, "q:"+m.filter.Search)
	}
	return strings.Join(parts, " ")
}

func (m Model) renderTabs() string {
	names := make([]string, 0, int(tabCount))
	for t := tab(0); t < tabCount; t++ {
		name := t.String()
		if t == m.tab {
			names = append(names, activeTabStyle.Render(name))
		} else {
			names = append(names, inactiveTabStyle.Render(name))
		}
	}
	return " " + strings.Join(names, "  ")
}

func (m Model) renderTable() string {
	switch m.tab {
	case tabSessions:
		return m.renderSessions()
	case tabFunnel:
		return m.renderFunnel()
	case tabQueue:
		return m.renderQueue()
	case tabAlerts:
		return m.renderAlerts()
	default:
		return m.renderGroups()
	}
}

// column is one table column: header, width, and a row renderer.
type column struct {
	title string
	width int
	cell  func(i int) string
}

// renderRows renders a header plus the visible slice of n rows.
func (m Model) renderRows(cols []column, n int) string {
	var b strings.Builder

	var header strings.Builder
	for _, c := range cols {
		header.WriteString(padRight(c.title, c.width))
		header.WriteString(" ")
	}
	b.WriteString(tableHeaderStyle.Render(header.String()))
	b.WriteString("\n")

	visible := m.tableHeight()
	end := m.offset + visible
	if end > n {
		end = n
	}

	for i := m.offset; i < end; i++ {
		var row strings.Builder
		for _, c := range cols {
			row.WriteString(padRight(truncateRunes(c.cell(i), c.width), c.width))
			row.WriteString(" ")
		}
		style := normalRowStyle
		if i == m.cursor {
			style = cursorRowStyle
		}
		b.WriteString(style.Render(row.String()))
		b.WriteString("\n")
	}
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSessions() string {
	cols := []column{
		{"Session", 20, func(i int) string { return m.view[i].SessionID() }},
		{"Opened", 16, func(i int) string { return fmtTimeShort(m.view[i].TSOpen) }},
		{"Source", 14, func(i int) string { return m.view[i].Get(schema.FieldUTMSource) }},
		{"Country", 8, func(i int) string { return m.view[i].Get(schema.FieldCountry) }},
		{"Device", 8, func(i int) string { return m.view[i].Get(schema.FieldDeviceType) }},
		{"Steps", 5, func(i int) string { return fmt.Sprintf("%d/3", m.view[i].StepsDone) }},
		{"CTA", 3, func(i int) string { return checkmark(m.view[i].CTAClicked) }},
		{"Mail", 8, func(i int) string { return string(m.view[i].MailState) }},
	}
	return m.renderRows(cols, len(m.view))
}

func (m Model) renderGroups() string {
	keyWidth := m.width - 40
	if keyWidth < 16 {
		keyWidth = 16
	}
	cols := []column{
		{m.tab.String(), keyWidth, func(i int) string { return groupLabel(m.groups[i].Key) }},
		{"Sessions", 8, func(i int) string { return fmt.Sprintf("%d", m.groups[i].Sessions) }},
		{"CTA", 6, func(i int) string { return fmt.Sprintf("%d", m.groups[i].CTAClicks) }},
		{"Rate", 7, func(i int) string { return fmtPercent(m.groups[i].CTARate) }},
		{"Mails", 6, func(i int) string { return fmt.Sprintf("%d", m.groups[i].MailReceived) }},
	}
	return m.renderRows(cols, len(m.groups))
}

func (m Model) renderFunnel() string {
	barWidth := m.width - 40
	if barWidth < 10 {
		barWidth = 10
	}
	steps := m.funnel.Steps
	cols := []column{
		{"Milestone", 10, func(i int) string { return steps[i].Label }},
		{"Count", 7, func(i int) string { return fmt.Sprintf("%d", steps[i].Count) }},
		{"Share", 7, func(i int) string { return fmtPercent(steps[i].Share) }},
		{"", barWidth, func(i int) string { return bar(steps[i].Share, barWidth) }},
	}
	return m.renderRows(cols, len(steps))
}

func (m Model) renderQueue() string {
	now := m.now()
	cols := []column{
		{"Session", 20, func(i int) string { return m.queue[i].Record.SessionID() }},
		{"CTA", 12, func(i int) string { return m.queue[i].Record.Get(schema.FieldCTALabel) }},
		{"Clicked", 16, func(i int) string { return fmtTimeShort(m.queue[i].Record.TSCTA) }},
		{"Deadline", 10, func(i int) string { return fmtCountdown(m.queue[i].Deadline.Sub(now)) }},
	}
	return m.renderRows(cols, len(m.queue))
}

func (m Model) renderAlerts() string {
	cols := []column{
		{"Severity", 8, func(i int) string { return m.alerts[i].Severity }},
		{"Alert", m.width - 12, func(i int) string { return m.alerts[i].Text }},
	}
	return m.renderRows(cols, len(m.alerts))
}

func (m Model) renderFooter() string {
	if m.err != nil {
		return errorStyle.Width(m.width).Render(" refresh failed: " + m.err.Error())
	}
	left := "tab: switch  j/k: move  /: search  p: period  c: cta  m: mail  x: clear  r: refresh  q: quit"
	if m.flash != "" {
		return footerStyle.Width(m.width).Render(left + "  " + flashStyle.Render(m.flash))
	}
	return footerStyle.Width(m.width).Render(left)
}

// groupLabel renders an aggregate key, standing in for an all-empty one.
func groupLabel(key string) string {
	if strings.TrimSpace(strings.ReplaceAll(key, "/", "")) == "" {
		return "(unknown)"
	}
	return key
}

func checkmark(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

// bar renders a proportional block bar for the funnel.
func bar(share float64, width int) string {
	if share < 0 {
		share = 0
	}
	if share > 1 {
		share = 1
	}
	n := int(share*float64(width) + 0.5)
	return strings.Repeat("█", n)
}

func fmtTimeShort(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("01-02 15:04")
}

// fmtCountdown renders time remaining until a deadline, "late" when past.
func fmtCountdown(d time.Duration) string {
	if d < 0 {
		return "late"
	}
	mins := int(d / time.Minute)
	secs := int(d/time.Second) % 60
	return fmt.Sprintf("%dm%02ds", mins, secs)
}
