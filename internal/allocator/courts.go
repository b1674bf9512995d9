package allocator

import (
	"sort"
	"strconv"
	"strings"
)

// CourtSet is a set of court identifiers. Operations return new sets and
// never modify their receivers.
type CourtSet map[int]struct{}

func NewCourtSet(ids ...int) CourtSet {
	s := make(CourtSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s CourtSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

func (s CourtSet) Len() int { return len(s) }

func (s CourtSet) Clone() CourtSet {
	out := make(CourtSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s CourtSet) Intersect(o CourtSet) CourtSet {
	out := make(CourtSet)
	for id := range s {
		if o.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s CourtSet) Minus(o CourtSet) CourtSet {
	out := make(CourtSet)
	for id := range s {
		if !o.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the identifiers in ascending order.
func (s CourtSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (s CourtSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
