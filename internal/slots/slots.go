// Package slots generates the candidate start times and duration levels
// that the allocator searches.
package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/example/courtsniper/internal/internaltypes"
)

// Step is the reservation grid granularity in minutes.
const Step = 30

const minutesPerDay = 24 * 60

var hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// DefaultDurations is the priority order used when no duration is pinned.
var DefaultDurations = []int{120, 90, 60, 30}

// Offsets is the ordered fan-out around the requested base time.
var Offsets = []int{0, Step, -Step, 2 * Step, -2 * Step}

// TimeOfDay is a wall-clock time in minutes since local midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := hhmm.FindStringSubmatch(s)
	if m == nil {
		return 0, &internaltypes.FormatError{Field: "time", Value: s}
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return TimeOfDay(h*60 + min), nil
}

// Clock builds a TimeOfDay from hour and minute, wrapping past midnight.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(0).Add(hour*60 + minute)
}

// Add returns t shifted by the given minutes, modulo 24h.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	v := (int(t) + minutes) % minutesPerDay
	if v < 0 {
		v += minutesPerDay
	}
	return TimeOfDay(v)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// HMS renders "15:04:05", the form the reservation API expects.
func (t TimeOfDay) HMS() string {
	return t.String() + ":00"
}

// Meridiem renders "3:04 PM".
func (t TimeOfDay) Meridiem() string {
	return t.On(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).Format("3:04 PM")
}

// On places t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

// GenerateTimeSlots returns the five candidate starts around base in
// priority order: base, +30, -30, +60, -60. Starts near midnight wrap.
func GenerateTimeSlots(base string) ([]TimeOfDay, error) {
	t, err := ParseTimeOfDay(base)
	if err != nil {
		return nil, err
	}
	out := make([]TimeOfDay, 0, len(Offsets))
	for _, off := range Offsets {
		out = append(out, t.Add(off))
	}
	return out, nil
}

// SubIntervals lists the grid starts covering [start, start+duration).
func SubIntervals(start TimeOfDay, duration int) []TimeOfDay {
	n := duration / Step
	out := make([]TimeOfDay, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start.Add(i*Step))
	}
	return out
}

// Durations returns the scan order: the pinned duration alone, or the
// defaults when pinned is zero.
func Durations(pinned int) ([]int, error) {
	if pinned == 0 {
		return append([]int(nil), DefaultDurations...), nil
	}
	if err := ValidateDuration(pinned); err != nil {
		return nil, err
	}
	return []int{pinned}, nil
}

func ValidateDuration(d int) error {
	if d <= 0 || d%Step != 0 || d > 4*60 {
		return &internaltypes.FormatError{Field: "duration", Value: strconv.Itoa(d)}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD target date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, &internaltypes.FormatError{Field: "date", Value: s}
	}
	return d, nil
}
