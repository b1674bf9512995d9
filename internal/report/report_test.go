package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/booking"
	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/scheduler"
	"github.com/example/courtsniper/internal/slots"
	"github.com/example/courtsniper/internal/venue"
)

func TestCycle(t *testing.T) {
	opp := allocator.Opportunity{Start: slots.Clock(18, 0), Duration: 90, Courts: allocator.NewCourtSet(5, 7)}
	start := time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)
	rep := scheduler.CycleReport{
		Poll:          4,
		Started:       start,
		Finished:      start.Add(1500 * time.Millisecond),
		Opportunities: []allocator.Opportunity{opp},
		Attempts: []booking.Attempt{
			{Actor: "a@example.com", Assignment: allocator.Assignment{Actor: 0, Opportunity: opp, Court: 5}, Outcome: booking.Booked, Tries: 1},
			{Actor: "b@example.com", Assignment: allocator.Assignment{Actor: 1, Opportunity: opp, Court: 7}, Outcome: booking.Failed, Tries: 3, Message: "Court taken"},
		},
		Booked: 1,
		Failed: 1,
	}

	var buf bytes.Buffer
	New(&buf).Cycle(rep)
	out := buf.String()
	assert.Contains(t, out, "Poll #4")
	assert.Contains(t, out, "18:00  90min  courts {5,7}")
	assert.Contains(t, out, "b@example.com  18:00 90min court 7  failed (tries 3)")
	assert.Contains(t, out, "Court taken")
	assert.Contains(t, out, "1/2 booked, 0 unavailable, 1 failed")

	buf.Reset()
	New(&buf).Cycle(scheduler.CycleReport{Poll: 1, Err: errors.New("portal down")})
	assert.Contains(t, buf.String(), "probe failed: portal down")
}

func TestPlan(t *testing.T) {
	opp := allocator.Opportunity{Start: slots.Clock(18, 0), Duration: 90, Courts: allocator.NewCourtSet(5)}
	var buf bytes.Buffer
	New(&buf).Plan([]allocator.Opportunity{opp}, allocator.Assign([]allocator.Opportunity{opp}, 2), []string{"a@example.com", "b@example.com"})
	out := buf.String()
	assert.Contains(t, out, "a@example.com: 18:00-19:30 court 5")
	assert.Contains(t, out, "1 account(s) left without a court")

	buf.Reset()
	New(&buf).Plan(nil, nil, nil)
	assert.Contains(t, buf.String(), "no courts available")
}

func TestTables(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.History([]history.Cycle{{Venue: "sunnyvale", Poll: 2, Booked: 1, Error: ""}})
	p.Attempts([]history.Attempt{{Actor: "a@example.com", Slot: "18:00", Duration: 60, Court: 3, Outcome: "booked", Tries: 1}})
	sv, _ := venue.Builtin("sunnyvale")
	p.Venues([]venue.Profile{sv})
	out := buf.String()
	assert.Contains(t, out, "sunnyvale")
	assert.Contains(t, out, "a@example.com")
	assert.Contains(t, out, "whole-day")
	assert.Contains(t, out, "5m0s")

	buf.Reset()
	p.History(nil)
	assert.Contains(t, buf.String(), "no history")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "a b", truncate("a\n  b", 10))
}
