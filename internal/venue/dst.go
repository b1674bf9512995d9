package venue

import (
	"fmt"
	"time"
)

// USClock converts between UTC and a US civil time zone given its standard
// offset. Daylight time runs from the second Sunday of March at 02:00
// standard time to the first Sunday of November at 02:00 daylight time.
type USClock struct {
	Std time.Duration
}

func nthSunday(year int, month time.Month, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	shift := (int(time.Sunday) - int(first.Weekday()) + 7) % 7
	return 1 + shift + 7*(n-1)
}

// dstBounds returns the UTC instants at which daylight time begins and ends.
func (c USClock) dstBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.March, nthSunday(year, time.March, 2), 2, 0, 0, 0, time.UTC).Add(-c.Std)
	end := time.Date(year, time.November, nthSunday(year, time.November, 1), 2, 0, 0, 0, time.UTC).Add(-(c.Std + time.Hour))
	return start, end
}

// Offset returns the UTC offset in effect at the instant t.
func (c USClock) Offset(t time.Time) time.Duration {
	t = t.UTC()
	start, end := c.dstBounds(t.Year())
	if !t.Before(start) && t.Before(end) {
		return c.Std + time.Hour
	}
	return c.Std
}

// Zone returns a fixed zone carrying the offset in effect at t.
func (c USClock) Zone(t time.Time) *time.Location {
	off := c.Offset(t)
	name := fmt.Sprintf("UTC%+d", int(off/time.Hour))
	return time.FixedZone(name, int(off/time.Second))
}

// Local converts t to venue civil time.
func (c USClock) Local(t time.Time) time.Time {
	return t.In(c.Zone(t))
}

// DateOffset returns the offset in effect at local noon of the given
// calendar day, which is unambiguous on transition days.
func (c USClock) DateOffset(year int, month time.Month, day int) time.Duration {
	noon := time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Add(-c.Std)
	return c.Offset(noon)
}
