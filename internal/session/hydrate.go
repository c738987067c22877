package session

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/msgroups/sessionvault/internal/schema"
)

// DefaultMailWindow is the follow-up SLA: a CTA conversion is expected to
// produce a mail_received event within this window.
const DefaultMailWindow = 30 * time.Minute

// Hydrator coerces raw records into typed Records. It is a pure function
// of its inputs plus the Now clock: no I/O, no mutation of the raw record,
// no failure path. Unparsable scalars degrade to nil.
type Hydrator struct {
	MailWindow time.Duration    // SLA window for the mail state machine
	Now        func() time.Time // time source, mockable for testing
}

// NewHydrator returns a Hydrator with the default SLA window and clock.
func NewHydrator() *Hydrator {
	return &Hydrator{
		MailWindow: DefaultMailWindow,
		Now:        time.Now,
	}
}

// Hydrate turns a RawRecord into a typed Record. The mail state is
// evaluated once, against the current refresh instant: a pending row does
// not flip to notfound until the next hydration pass.
func (h *Hydrator) Hydrate(raw RawRecord) Record {
	r := Record{Raw: raw}

	r.CTAClicked = ParseBool(raw[schema.FieldCTAClicked])

	r.ScreenWidth = ParseNumber(raw[schema.FieldScreenWidth])
	r.ScreenHeight = ParseNumber(raw[schema.FieldScreenHeight])
	r.ViewportWidth = ParseNumber(raw[schema.FieldViewportWidth])
	r.ViewportHeight = ParseNumber(raw[schema.FieldViewportHeight])
	r.DevicePixelRatio = ParseNumber(raw[schema.FieldDevicePixelRatio])
	r.TimezoneOffsetMin = ParseNumber(raw[schema.FieldTimezoneOffsetMin])
	r.AmountEUR = ParseNumber(raw[schema.FieldFormMontantEUR])
	r.DurationMonths = ParseNumber(raw[schema.FieldFormDureeMois])

	r.TSOpen = ParseDate(raw[schema.FieldTSOpen])
	r.TSCTA = ParseDate(raw[schema.FieldTSCTA])
	r.TSUpdate = ParseDate(raw[schema.FieldTSLastUpdate])

	r.MailState = h.mailState(r)
	r.StepsDone = stepsDone(raw)

	return r
}

// HydrateAll hydrates a whole batch in order.
func (h *Hydrator) HydrateAll(raws []RawRecord) []Record {
	records := make([]Record, len(raws))
	for i, raw := range raws {
		records[i] = h.Hydrate(raw)
	}
	return records
}

// mailState derives the follow-up status for a CTA conversion:
//
//	no CTA click, or no CTA timestamp  -> "" (not applicable)
//	last_event == mail_received        -> received (terminal)
//	elapsed since CTA <= window        -> pending (inclusive at the bound)
//	elapsed since CTA >  window        -> notfound
//
// A confirmed receipt is never invalidated by the window.
func (h *Hydrator) mailState(r Record) MailState {
	if !r.CTAClicked || r.TSCTA == nil {
		return MailStateNone
	}
	if strings.EqualFold(strings.TrimSpace(r.Raw[schema.FieldLastEvent]), "mail_received") {
		return MailStateReceived
	}
	if h.Now().Sub(*r.TSCTA) <= h.MailWindow {
		return MailStatePending
	}
	return MailStateNotFound
}

// stepsDone counts coarse form-completion milestones from field presence
// alone; it does not validate field content.
func stepsDone(raw RawRecord) int {
	steps := 0
	if present(raw[schema.FieldFormPrenom]) || present(raw[schema.FieldFormNom]) || present(raw[schema.FieldFormEmail]) {
		steps++
	}
	if present(raw[schema.FieldFormMontantEUR]) || present(raw[schema.FieldFormDureeMois]) || present(raw[schema.FieldFormRaison]) {
		steps++
	}
	if present(raw[schema.FieldFormStatut]) || present(raw[schema.FieldFormRevenus]) {
		steps++
	}
	return steps
}

func present(v string) bool {
	return strings.TrimSpace(v) != ""
}

// ParseBool treats true/"true"/1/"1" as true and everything else as false.
func ParseBool(v string) bool {
	switch strings.TrimSpace(v) {
	case "true", "TRUE", "True", "1":
		return true
	}
	return false
}

// ParseNumber parses a permissive decimal. Empty, unparsable, and
// non-finite inputs all yield nil rather than NaN.
func ParseNumber(v string) *float64 {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// dateLayouts are tried in order. Layouts without a zone are interpreted
// in local time, matching how the sheet stores wall-clock values.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a timestamp, returning nil for empty or invalid input.
func ParseDate(v string) *time.Time {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if strings.Contains(layout, "Z") {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return &t
		}
	}
	return nil
}
