package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/msgroups/sessionvault/internal/report"
	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
	"github.com/msgroups/sessionvault/internal/tabular"
)

// KPIResponse carries the scalar indicators plus batch metadata.
type KPIResponse struct {
	Total           int     `json:"total"`
	Active          int     `json:"active"`
	CTACount        int     `json:"cta_count"`
	CTARate         float64 `json:"cta_rate"`
	MailReceived    int     `json:"mail_received"`
	LastSync        string  `json:"last_sync,omitempty"`
	IngestionErrors int     `json:"ingestion_errors"`
}

// SessionSummary represents a session row in list responses.
type SessionSummary struct {
	SessionID   string `json:"session_id"`
	TSOpen      string `json:"ts_open,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	Country     string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`
	DeviceType  string `json:"device_type,omitempty"`
	OS          string `json:"os,omitempty"`
	Browser     string `json:"browser,omitempty"`
	StepsDone   int    `json:"steps_done"`
	CTAClicked  bool   `json:"cta_clicked"`
	CTALabel    string `json:"cta_label,omitempty"`
	MailState   string `json:"mail_state"`
}

// SessionDetail represents a full session response.
type SessionDetail struct {
	SessionSummary
	Fields   map[string]string `json:"fields"`
	Timeline []TimelineEvent   `json:"timeline"`
}

// TimelineEvent is one reconstructed session milestone.
type TimelineEvent struct {
	At    string `json:"at"`
	Event string `json:"event"`
}

// GroupsResponse represents one grouped table.
type GroupsResponse struct {
	Dimension string     `json:"dimension"`
	Rows      []GroupRow `json:"rows"`
}

// GroupRow is one row of a grouped table.
type GroupRow struct {
	Key          string  `json:"key"`
	Sessions     int     `json:"sessions"`
	CTAClicks    int     `json:"cta_clicks"`
	CTARate      float64 `json:"cta_rate"`
	MailReceived int     `json:"mail_received"`
}

// FunnelResponse represents the form funnel.
type FunnelResponse struct {
	Total int          `json:"total"`
	Steps []FunnelStep `json:"steps"`
}

// FunnelStep is one cumulative funnel milestone.
type FunnelStep struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// QueueItem is one follow-up still inside the SLA window.
type QueueItem struct {
	SessionID string `json:"session_id"`
	CTALabel  string `json:"cta_label,omitempty"`
	CTAAt     string `json:"cta_at"`
	Deadline  string `json:"deadline"`
	MailState string `json:"mail_state"`
}

// Alert is one operator-facing condition.
type Alert struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// StatusResponse reports the refresh job and batch state.
type StatusResponse struct {
	SchedulerRunning bool   `json:"scheduler_running"`
	RefreshRunning   bool   `json:"refresh_running"`
	Schedule         string `json:"schedule,omitempty"`
	LastRun          string `json:"last_run,omitempty"`
	NextRun          string `json:"next_run,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastSync         string `json:"last_sync,omitempty"`
	Rows             int    `json:"rows"`
	IngestionErrors  int    `json:"ingestion_errors"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// filterSpecFromQuery maps query parameters onto a FilterSpec. Unknown
// parameters are ignored; unknown enum values fall back to "".
func filterSpecFromQuery(r *http.Request) report.FilterSpec {
	q := r.URL.Query()

	spec := report.FilterSpec{
		From:        q.Get("from"),
		To:          q.Get("to"),
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
		Country:     q.Get("country"),
		DeviceType:  q.Get("device_type"),
		Search:      q.Get("q"),
	}

	switch p := report.Period(q.Get("period")); p {
	case report.PeriodToday, report.Period7Days, report.Period30Days, report.PeriodCustom:
		spec.Period = p
	}
	switch c := report.CTAFilter(q.Get("cta")); c {
	case report.CTAClickedOnly, report.CTANotClicked:
		spec.CTA = c
	}
	switch m := session.MailState(q.Get("mail_state")); m {
	case session.MailStatePending, session.MailStateReceived, session.MailStateNotFound:
		spec.MailState = m
	}

	return spec
}

// view computes the filtered view for a request.
func (s *Server) view(r *http.Request) []session.Record {
	return report.Apply(s.data.Records(), filterSpecFromQuery(r), s.now())
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// handleKPIs returns the scalar indicators over the filtered view.
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	view := s.view(r)
	k := report.ComputeKPIs(view, s.now(), s.cfg.ActiveWindow())
	meta := s.data.Meta()

	resp := KPIResponse{
		Total:           k.Total,
		Active:          k.Active,
		CTACount:        k.CTACount,
		CTARate:         k.CTARate,
		MailReceived:    k.MailReceived,
		IngestionErrors: meta.IngestionErrors,
	}
	if !meta.LastSync.IsZero() {
		resp.LastSync = meta.LastSync.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

func summarize(rec session.Record) SessionSummary {
	return SessionSummary{
		SessionID:   rec.SessionID(),
		TSOpen:      fmtTime(rec.TSOpen),
		UTMSource:   rec.Get(schema.FieldUTMSource),
		UTMMedium:   rec.Get(schema.FieldUTMMedium),
		UTMCampaign: rec.Get(schema.FieldUTMCampaign),
		Referrer:    rec.Get(schema.FieldReferrer),
		Country:     rec.Get(schema.FieldCountry),
		City:        rec.Get(schema.FieldCity),
		DeviceType:  rec.Get(schema.FieldDeviceType),
		OS:          rec.Get(schema.FieldOS),
		Browser:     rec.Get(schema.FieldBrowser),
		StepsDone:   rec.StepsDone,
		CTAClicked:  rec.CTAClicked,
		CTALabel:    rec.Get(schema.FieldCTALabel),
		MailState:   string(rec.MailState),
	}
}

// handleListSessions returns a paginated slice of the filtered view.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	view := s.view(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	start := (page - 1) * pageSize
	if start > len(view) {
		start = len(view)
	}
	end := start + pageSize
	if end > len(view) {
		end = len(view)
	}

	summaries := make([]SessionSummary, 0, end-start)
	for _, rec := range view[start:end] {
		summaries = append(summaries, summarize(rec))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     len(view),
		"page":      page,
		"page_size": pageSize,
		"sessions":  summaries,
	})
}

// handleGetSession returns one session with all raw fields and its
// reconstructed timeline. Duplicate session IDs are tolerated in a
// batch; the first (newest-opened) match wins.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "Session ID is required")
		return
	}

	for _, rec := range s.data.Records() {
		if rec.SessionID() != id {
			continue
		}

		fields := make(map[string]string, len(schema.Headers))
		for _, h := range schema.Headers {
			fields[h] = rec.Get(h)
		}

		var timeline []TimelineEvent
		for _, ev := range report.Timeline(rec) {
			timeline = append(timeline, TimelineEvent{
				At:    ev.At.Format(time.RFC3339),
				Event: ev.Event,
			})
		}

		writeJSON(w, http.StatusOK, SessionDetail{
			SessionSummary: summarize(rec),
			Fields:         fields,
			Timeline:       timeline,
		})
		return
	}

	writeError(w, http.StatusNotFound, "not_found", "Session not found")
}

// handleGroups returns one grouped table over the filtered view.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dimension")
	dim, ok := report.ParseDimension(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_dimension",
			"Dimension must be one of: acquisition, referrer, device, country")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows := report.GroupBy(s.view(r), dim, limit)
	resp := GroupsResponse{Dimension: dim.String(), Rows: make([]GroupRow, len(rows))}
	for i, row := range rows {
		resp.Rows[i] = GroupRow{
			Key:          row.Key,
			Sessions:     row.Sessions,
			CTAClicks:    row.CTAClicks,
			CTARate:      row.CTARate,
			MailReceived: row.MailReceived,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFunnel returns the cumulative form funnel over the filtered view.
func (s *Server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	f := report.ComputeFunnel(s.view(r))
	resp := FunnelResponse{Total: f.Total, Steps: make([]FunnelStep, len(f.Steps))}
	for i, step := range f.Steps {
		resp.Steps[i] = FunnelStep{Label: step.Label, Count: step.Count, Share: step.Share}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQueue returns the follow-ups still inside the SLA window,
// oldest deadline first.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	items := report.Queue(s.view(r), s.now(), s.cfg.MailWindow())

	resp := make([]QueueItem, len(items))
	for i, item := range items {
		resp[i] = QueueItem{
			SessionID: item.Record.SessionID(),
			CTALabel:  item.Record.Get(schema.FieldCTALabel),
			CTAAt:     fmtTime(item.Record.TSCTA),
			Deadline:  item.Deadline.Format(time.RFC3339),
			MailState: string(item.Record.MailState),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"queue": resp})
}

// handleAlerts evaluates alerts over the filtered view.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := report.Alerts(s.view(r))
	resp := make([]Alert, len(alerts))
	for i, a := range alerts {
		resp[i] = Alert{Severity: a.Severity, Text: a.Text}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": resp})
}

// handleOptions returns the distinct categorical filter values over the
// full batch.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts := report.Options(s.data.Records())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"utm_sources":   opts.UTMSources,
		"utm_mediums":   opts.UTMMediums,
		"utm_campaigns": opts.UTMCampaigns,
		"countries":     opts.Countries,
		"device_types":  opts.DeviceTypes,
	})
}

// handleExportCSV streams the filtered view as a CSV download in the
// canonical column order.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	view := s.view(r)
	csv := tabular.Export(view, schema.Headers)

	filename := "sessionvault_export_" + s.now().Format("2006-01-02-15-04-05") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csv))
}

// handleTriggerRefresh manually triggers a refresh.
func (s *Server) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Trigger(); err != nil {
		s.logger.Error("failed to trigger refresh", "error", err)
		writeError(w, http.StatusConflict, "refresh_error", err.Error())
		return
	}

	s.logger.Info("refresh triggered via API")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Refresh started",
	})
}

// handleStatus returns the refresh job and batch state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.refresher.Status()
	meta := s.data.Meta()

	resp := StatusResponse{
		SchedulerRunning: s.refresher.IsRunning(),
		RefreshRunning:   status.Running,
		Schedule:         status.Schedule,
		LastError:        status.LastError,
		Rows:             meta.RowCount,
		IngestionErrors:  meta.IngestionErrors,
	}
	if !status.LastRun.IsZero() {
		resp.LastRun = status.LastRun.Format(time.RFC3339)
	}
	if !status.NextRun.IsZero() {
		resp.NextRun = status.NextRun.Format(time.RFC3339)
	}
	if !meta.LastSync.IsZero() {
		resp.LastSync = meta.LastSync.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}
