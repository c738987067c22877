package session

import (
	"testing"
	"time"

	"github.com/msgroups/sessionvault/internal/schema"
)

func testHydrator(now time.Time) *Hydrator {
	h := NewHydrator()
	h.Now = func() time.Time { return now }
	return h
}

func rawWith(fields map[string]string) RawRecord {
	rec := NewRawRecord()
	for k, v := range fields {
		rec[k] = v
	}
	return rec
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"True", true},
		{"1", true},
		{" 1 ", true},
		{"false", false},
		{"0", false},
		{"yes", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ParseBool(tt.in); got != tt.want {
			t.Errorf("ParseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"12", f(12)},
		{"12.5", f(12.5)},
		{"-3", f(-3)},
		{" 7 ", f(7)},
		{"", nil},
		{"  ", nil},
		{"abc", nil},
		{"NaN", nil},
		{"Inf", nil},
		{"-Inf", nil},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseNumber(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && got == nil:
			t.Errorf("ParseNumber(%q) = nil, want %v", tt.in, *tt.want)
		case tt.want != nil && got != nil && *got != *tt.want:
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	if got := ParseDate(""); got != nil {
		t.Errorf("ParseDate(\"\") = %v, want nil", got)
	}
	if got := ParseDate("not a date"); got != nil {
		t.Errorf("ParseDate(garbage) = %v, want nil", got)
	}

	got := ParseDate("2024-01-01T12:30:00Z")
	if got == nil {
		t.Fatal("ParseDate(RFC3339) = nil")
	}
	want := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseDate = %v, want %v", got, want)
	}

	if got := ParseDate("2024-01-01"); got == nil {
		t.Error("ParseDate(day only) = nil, want a date")
	}
	if got := ParseDate("2024-01-01 09:15:00"); got == nil {
		t.Error("ParseDate(space layout) = nil, want a date")
	}
}

func TestHydrateTypedFields(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := testHydrator(now)

	rec := h.Hydrate(rawWith(map[string]string{
		schema.FieldSessionID:      "s1",
		schema.FieldTSOpen:         "2024-06-01T10:00:00Z",
		schema.FieldCTAClicked:     "1",
		schema.FieldScreenWidth:    "1920",
		schema.FieldFormMontantEUR: "2500",
		schema.FieldFormDureeMois:  "oops",
		schema.FieldTSLastUpdate:   "garbage",
	}))

	if rec.SessionID() != "s1" {
		t.Errorf("SessionID = %q, want s1", rec.SessionID())
	}
	if !rec.CTAClicked {
		t.Error("CTAClicked = false, want true")
	}
	if rec.TSOpen == nil || !rec.TSOpen.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("TSOpen = %v", rec.TSOpen)
	}
	if rec.TSUpdate != nil {
		t.Errorf("TSUpdate = %v, want nil for unparsable input", rec.TSUpdate)
	}
	if rec.ScreenWidth == nil || *rec.ScreenWidth != 1920 {
		t.Errorf("ScreenWidth = %v, want 1920", rec.ScreenWidth)
	}
	if rec.AmountEUR == nil || *rec.AmountEUR != 2500 {
		t.Errorf("AmountEUR = %v, want 2500", rec.AmountEUR)
	}
	if rec.DurationMonths != nil {
		t.Errorf("DurationMonths = %v, want nil for unparsable input", rec.DurationMonths)
	}
}

func TestHydrateNeverMutatesInput(t *testing.T) {
	raw := rawWith(map[string]string{
		schema.FieldCTAClicked: "true",
		schema.FieldTSCTA:      "2024-06-01T10:00:00Z",
	})
	before := make(map[string]string, len(raw))
	for k, v := range raw {
		before[k] = v
	}

	testHydrator(time.Now()).Hydrate(raw)

	for k, v := range before {
		if raw[k] != v {
			t.Fatalf("Hydrate mutated raw[%q]: %q -> %q", k, v, raw[k])
		}
	}
}

func TestMailState(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := testHydrator(now)
	cta := func(age time.Duration) string {
		return now.Add(-age).Format(time.RFC3339)
	}

	tests := []struct {
		name      string
		clicked   string
		tsCTA     string
		lastEvent string
		want      MailState
	}{
		{"no cta", "false", "", "", MailStateNone},
		{"cta without timestamp", "true", "", "form_submit", MailStateNone},
		{"recent cta pending", "true", cta(10 * time.Minute), "cta_click", MailStatePending},
		{"exactly at the window is still pending", "true", cta(30 * time.Minute), "cta_click", MailStatePending},
		{"past the window", "true", cta(31 * time.Minute), "cta_click", MailStateNotFound},
		{"received inside window", "true", cta(10 * time.Minute), "mail_received", MailStateReceived},
		{"received is terminal past the window", "true", cta(90 * time.Minute), "mail_received", MailStateReceived},
		{"received is case-insensitive", "true", cta(5 * time.Minute), "Mail_Received", MailStateReceived},
		{"no state without click even with events", "false", cta(5 * time.Minute), "mail_received", MailStateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.Hydrate(rawWith(map[string]string{
				schema.FieldCTAClicked: tt.clicked,
				schema.FieldTSCTA:      tt.tsCTA,
				schema.FieldLastEvent:  tt.lastEvent,
			}))
			if rec.MailState != tt.want {
				t.Errorf("MailState = %q, want %q", rec.MailState, tt.want)
			}
		})
	}
}

func TestStepsDone(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   int
	}{
		{"empty form", nil, 0},
		{"identity only", map[string]string{schema.FieldFormEmail: "a@b.fr"}, 1},
		{"identity and amount", map[string]string{
			schema.FieldFormPrenom:     "Ana",
			schema.FieldFormMontantEUR: "1000",
		}, 2},
		{"all sections", map[string]string{
			schema.FieldFormNom:       "Durand",
			schema.FieldFormDureeMois: "12",
			schema.FieldFormStatut:    "salarié",
		}, 3},
		{"later section without earlier still counts once", map[string]string{
			schema.FieldFormRevenus: "2000",
		}, 1},
		{"whitespace is not presence", map[string]string{
			schema.FieldFormEmail: "   ",
		}, 0},
	}

	h := testHydrator(time.Now())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.Hydrate(rawWith(tt.fields))
			if rec.StepsDone != tt.want {
				t.Errorf("StepsDone = %d, want %d", rec.StepsDone, tt.want)
			}
		})
	}
}

func TestRecordField(t *testing.T) {
	now := time.Now()
	h := testHydrator(now)
	rec := h.Hydrate(rawWith(map[string]string{
		schema.FieldSessionID:  "s1",
		schema.FieldCTAClicked: "true",
		schema.FieldTSCTA:      now.Add(-5 * time.Minute).Format(time.RFC3339),
		schema.FieldFormEmail:  "a@b.fr",
	}))

	if got := rec.Field(schema.FieldSessionID); got != "s1" {
		t.Errorf("Field(session_id) = %q, want s1", got)
	}
	if got := rec.Field(FieldMailState); got != "pending" {
		t.Errorf("Field(mail_state_30) = %q, want pending", got)
	}
	if got := rec.Field(FieldStepsDone); got != "1" {
		t.Errorf("Field(steps_done) = %q, want 1", got)
	}
	if got := rec.Field("no_such_column"); got != "" {
		t.Errorf("Field(unknown) = %q, want empty", got)
	}
}

func f(v float64) *float64 { return &v }
