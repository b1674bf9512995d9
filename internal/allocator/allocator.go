// Package allocator turns a court availability snapshot into a prioritized
// list of booking opportunities and pairs them with accounts.
package allocator

import (
	"fmt"

	"github.com/example/courtsniper/internal/slots"
)

type Opportunity struct {
	Start    slots.TimeOfDay
	Duration int
	Courts   CourtSet
}

func (o Opportunity) End() slots.TimeOfDay { return o.Start.Add(o.Duration) }

func (o Opportunity) String() string {
	return fmt.Sprintf("%s+%dm %s", o.Start, o.Duration, o.Courts)
}

// ClaimSet tracks, per grid point, the courts already promised to an
// opportunity in the current pass.
type ClaimSet map[slots.TimeOfDay]CourtSet

func (c ClaimSet) claimed(window []slots.TimeOfDay) CourtSet {
	out := make(CourtSet)
	for _, t := range window {
		for id := range c[t] {
			out[id] = struct{}{}
		}
	}
	return out
}

func (c ClaimSet) claim(window []slots.TimeOfDay, courts CourtSet) {
	for _, t := range window {
		s, ok := c[t]
		if !ok {
			s = make(CourtSet)
			c[t] = s
		}
		for id := range courts {
			s[id] = struct{}{}
		}
	}
}

// Allocate scans durations longest first and, within each, candidate
// starts in the given order. Each opportunity found claims its courts for
// the whole window. The scan stops as soon as the claimed court count
// reaches need. The packing is greedy and may return fewer than need.
func Allocate(av Availability, candidates []slots.TimeOfDay, durations []int, need int) []Opportunity {
	var out []Opportunity
	if need <= 0 {
		return out
	}
	claims := make(ClaimSet)
	total := 0
	for _, d := range durations {
		for _, start := range candidates {
			free, ok := av.Window(start, d)
			if !ok {
				continue
			}
			window := slots.SubIntervals(start, d)
			free = free.Minus(claims.claimed(window))
			if free.Len() == 0 {
				continue
			}
			out = append(out, Opportunity{Start: start, Duration: d, Courts: free})
			claims.claim(window, free)
			total += free.Len()
			if total >= need {
				return out
			}
		}
	}
	return out
}

// Assignment pairs one account (by index) with one court of an opportunity.
type Assignment struct {
	Actor       int
	Opportunity Opportunity
	Court       int
}

// Assign hands out at most one opportunity per actor. Opportunities are
// consumed in allocation order, so the scarcer long windows near the
// requested time go first; each actor gets a distinct court.
func Assign(opps []Opportunity, actors int) []Assignment {
	var out []Assignment
	next := 0
	for _, o := range opps {
		for _, court := range o.Courts.Sorted() {
			if next >= actors {
				return out
			}
			out = append(out, Assignment{Actor: next, Opportunity: o, Court: court})
			next++
		}
	}
	return out
}
