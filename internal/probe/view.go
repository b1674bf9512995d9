package probe

import (
	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/slots"
)

// prefixView overlays the in-progress batch on the finished table.
type prefixView struct {
	base     *allocator.WindowTable
	duration int
	extra    map[slots.TimeOfDay]allocator.CourtSet
}

func (v *prefixView) add(s slots.TimeOfDay, c allocator.CourtSet) {
	if v.extra == nil {
		v.extra = map[slots.TimeOfDay]allocator.CourtSet{}
	}
	v.extra[s] = c
}

func (v *prefixView) Window(start slots.TimeOfDay, duration int) (allocator.CourtSet, bool) {
	if duration == v.duration {
		c, ok := v.extra[start]
		if !ok {
			return nil, false
		}
		return c.Clone(), true
	}
	return v.base.Window(start, duration)
}
