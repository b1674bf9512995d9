// Package probe discovers which courts are free around the requested time,
// either from one whole-day snapshot or by asking window by window.
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/courtreserve"
	"github.com/example/courtsniper/internal/slots"
	"github.com/example/courtsniper/internal/venue"
)

// Portal is the part of the CourtReserve client the probers use.
type Portal interface {
	ReadConsolidated(ctx context.Context, date time.Time) ([]courtreserve.ConsolidatedSlot, error)
	AvailableCourts(ctx context.Context, date time.Time, start slots.TimeOfDay, duration int) ([]int, error)
	DurationOptions(ctx context.Context, date time.Time, start slots.TimeOfDay, duration int) ([]int, error)
}

type Request struct {
	Date      time.Time
	Slots     []slots.TimeOfDay
	Durations []int
	// Need is the number of accounts looking for a court.
	Need int
	// PinnedCourt, when set, is assumed free for every window.
	PinnedCourt int
}

type Prober interface {
	Probe(ctx context.Context, portal Portal, req Request) (allocator.Availability, error)
}

// New picks the strategy configured for the venue and guards it with a
// circuit breaker.
func New(p venue.Profile, log *zap.Logger) Prober {
	if log == nil {
		log = zap.NewNop()
	}
	var inner Prober
	switch p.Strategy {
	case venue.PerWindow:
		inner = &PerWindow{Concurrency: p.ProbeConcurrency, DiscoverDurations: p.DurationDiscovery, Log: log}
	default:
		inner = &WholeDay{Clock: p.Clock(), Log: log}
	}
	return NewBreaker(p.Name, inner, log)
}
