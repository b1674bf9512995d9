package allocator

import (
	"github.com/example/courtsniper/internal/slots"
)

// Availability answers which courts are free for a whole window. ok is
// false when any part of the window has no data.
type Availability interface {
	Window(start slots.TimeOfDay, duration int) (courts CourtSet, ok bool)
}

// AvailabilityMap holds the free courts at each 30-minute grid point of
// one target date. It is built once per probe and never mutated.
type AvailabilityMap struct {
	free map[slots.TimeOfDay]CourtSet
}

func NewAvailabilityMap(free map[slots.TimeOfDay][]int) *AvailabilityMap {
	m := &AvailabilityMap{free: make(map[slots.TimeOfDay]CourtSet, len(free))}
	for t, ids := range free {
		m.free[t] = NewCourtSet(ids...)
	}
	return m
}

// At returns a copy of the free courts at t.
func (m *AvailabilityMap) At(t slots.TimeOfDay) (CourtSet, bool) {
	s, ok := m.free[t]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *AvailabilityMap) Len() int { return len(m.free) }

func (m *AvailabilityMap) Window(start slots.TimeOfDay, duration int) (CourtSet, bool) {
	var acc CourtSet
	for _, t := range slots.SubIntervals(start, duration) {
		s, ok := m.free[t]
		if !ok {
			return nil, false
		}
		if acc == nil {
			acc = s.Clone()
			continue
		}
		acc = acc.Intersect(s)
	}
	if acc == nil {
		return nil, false
	}
	return acc, true
}

type windowKey struct {
	start    slots.TimeOfDay
	duration int
}

// WindowTable records per-window probe results. Writers must finish before
// the table is handed to Allocate.
type WindowTable struct {
	entries map[windowKey]CourtSet
}

func NewWindowTable() *WindowTable {
	return &WindowTable{entries: make(map[windowKey]CourtSet)}
}

func (w *WindowTable) Set(start slots.TimeOfDay, duration int, courts CourtSet) {
	w.entries[windowKey{start, duration}] = courts.Clone()
}

func (w *WindowTable) Len() int { return len(w.entries) }

func (w *WindowTable) Window(start slots.TimeOfDay, duration int) (CourtSet, bool) {
	s, ok := w.entries[windowKey{start, duration}]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}
