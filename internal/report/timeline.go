package report

import (
	"sort"
	"time"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

// TimelineEvent is one reconstructed milestone of a session.
type TimelineEvent struct {
	At    time.Time
	Event string
}

// Timeline reconstructs a coarse event sequence for one session from its
// timestamps and derived fields. Step events borrow the best available
// timestamp; the result is sorted chronologically with ties kept in
// milestone order.
func Timeline(r session.Record) []TimelineEvent {
	var events []TimelineEvent
	add := func(at *time.Time, event string) {
		if at != nil {
			events = append(events, TimelineEvent{At: *at, Event: event})
		}
	}

	add(r.TSOpen, "session_start")
	if r.StepsDone >= 1 {
		add(r.TSOpen, "step1")
	}
	if r.StepsDone >= 2 {
		add(firstOf(r.TSUpdate, r.TSOpen), "step2")
	}
	if r.StepsDone >= 3 {
		add(firstOf(r.TSUpdate, r.TSOpen), "step3")
	}
	if r.CTAClicked {
		add(r.TSCTA, "cta_click")
	}
	if last := r.Get(schema.FieldLastEvent); last != "" {
		add(firstOf(r.TSUpdate, r.TSCTA, r.TSOpen), last)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})
	return events
}

func firstOf(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}
