// Package session defines the session record types and the hydration step
// that turns raw sheet rows into typed records.
package session

import (
	"strconv"
	"time"

	"github.com/msgroups/sessionvault/internal/schema"
)

// RawRecord maps a schema field name to its raw string value, exactly as
// produced by the parser. Every schema field is present; missing source
// columns default to "". A RawRecord is never mutated after creation.
type RawRecord map[string]string

// NewRawRecord returns a RawRecord with every schema field set to "".
func NewRawRecord() RawRecord {
	r := make(RawRecord, len(schema.Headers))
	for _, h := range schema.Headers {
		r[h] = ""
	}
	return r
}

// Field returns the raw value for a header name; unknown names yield "".
func (r RawRecord) Field(name string) string {
	return r[name]
}

// MailState is the derived follow-up status for a CTA conversion,
// tracked against the mail SLA window.
type MailState string

const (
	MailStateNone     MailState = ""         // no CTA click, not applicable
	MailStatePending  MailState = "pending"  // CTA within the window, mail not yet seen
	MailStateReceived MailState = "received" // mail_received event observed (terminal)
	MailStateNotFound MailState = "notfound" // window elapsed without mail_received
)

// Derived field names, usable as lookup keys alongside the schema columns.
const (
	FieldMailState = "mail_state_30"
	FieldStepsDone = "steps_done"
)

// Record is a hydrated session row: the raw values plus typed and derived
// fields. Pointer fields are nil when the source value was empty or
// unparsable; hydration never fails on bad input.
type Record struct {
	Raw RawRecord

	TSOpen   *time.Time
	TSCTA    *time.Time
	TSUpdate *time.Time

	ScreenWidth       *float64
	ScreenHeight      *float64
	ViewportWidth     *float64
	ViewportHeight    *float64
	DevicePixelRatio  *float64
	TimezoneOffsetMin *float64
	AmountEUR         *float64
	DurationMonths    *float64

	CTAClicked bool

	MailState MailState
	StepsDone int // 0..3 coarse form-completion milestones
}

// SessionID returns the raw session identifier.
func (r Record) SessionID() string {
	return r.Raw[schema.FieldSessionID]
}

// Get returns the raw value for the given schema field.
func (r Record) Get(field string) string {
	return r.Raw[field]
}

// Field returns the value for a header name, raw or derived, whichever
// matches. Exporting a record serializes whatever this returns; unknown
// names yield "".
func (r Record) Field(name string) string {
	if v, ok := r.Raw[name]; ok {
		return v
	}
	switch name {
	case FieldMailState:
		return string(r.MailState)
	case FieldStepsDone:
		return strconv.Itoa(r.StepsDone)
	}
	return ""
}

// OpenOrUpdate returns ts_open_date with ts_update_date as fallback.
// This is the timestamp used to place a record inside a time window.
func (r Record) OpenOrUpdate() *time.Time {
	if r.TSOpen != nil {
		return r.TSOpen
	}
	return r.TSUpdate
}

// LastSeen returns the most recent of ts_update_date and ts_open_date,
// used for the "active in the last N minutes" KPI.
func (r Record) LastSeen() *time.Time {
	if r.TSUpdate != nil {
		return r.TSUpdate
	}
	return r.TSOpen
}
