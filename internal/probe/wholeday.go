package probe

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/slots"
	"github.com/example/courtsniper/internal/venue"
)

var (
	stampPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2}):(\d{2}):(\d{2})`)
	clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})`)
)

// WholeDay reads the consolidated scheduler view once and answers every
// window locally by intersecting grid cells.
type WholeDay struct {
	Clock venue.USClock
	Log   *zap.Logger
}

func (w *WholeDay) Probe(ctx context.Context, portal Portal, req Request) (allocator.Availability, error) {
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	cells, err := portal.ReadConsolidated(ctx, req.Date)
	if err != nil {
		return nil, fmt.Errorf("whole-day probe: %w", err)
	}
	free := make(map[slots.TimeOfDay][]int, len(cells))
	for _, c := range cells {
		t, ok := w.localTime(c.ID, req.Date)
		if !ok {
			w.Log.Debug("skipping unparseable cell", zap.String("id", c.ID))
			continue
		}
		if req.PinnedCourt != 0 {
			free[t] = pinned(c.Courts, req.PinnedCourt)
			continue
		}
		free[t] = c.Courts
	}
	w.Log.Debug("whole-day snapshot", zap.Int("cells", len(cells)), zap.Int("times", len(free)))
	return allocator.NewAvailabilityMap(free), nil
}

func pinned(courts []int, id int) []int {
	for _, c := range courts {
		if c == id {
			return []int{id}
		}
	}
	return []int{}
}

// localTime converts the UTC stamp embedded in a cell id to venue time.
// Ids carrying a date are converted at their own instant; bare clock times
// use the offset in effect on the target date.
func (w *WholeDay) localTime(id string, date time.Time) (slots.TimeOfDay, bool) {
	if m := stampPattern.FindStringSubmatch(id); m != nil {
		n := atoi(m[1:])
		ts := time.Date(n[2], time.Month(n[0]), n[1], n[3], n[4], n[5], 0, time.UTC)
		local := w.Clock.Local(ts)
		return slots.Clock(local.Hour(), local.Minute()), true
	}
	if m := clockPattern.FindStringSubmatch(id); m != nil {
		n := atoi(m[1:])
		off := w.Clock.DateOffset(date.Year(), date.Month(), date.Day())
		return slots.Clock(n[0], n[1]+int(off/time.Minute)), true
	}
	return 0, false
}

func atoi(ss []string) []int {
	out := make([]int, len(ss))
	for i, s := range ss {
		out[i], _ = strconv.Atoi(s)
	}
	return out
}
