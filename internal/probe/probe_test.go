package probe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/courtreserve"
	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/slots"
	"github.com/example/courtsniper/internal/venue"
)

type fakePortal struct {
	mu      sync.Mutex
	cells   []courtreserve.ConsolidatedSlot
	windows map[string][]int
	delay   map[string]time.Duration
	options []int
	err     error
	probed  []string
}

func key(s slots.TimeOfDay, d int) string { return fmt.Sprintf("%s/%d", s, d) }

func (f *fakePortal) ReadConsolidated(ctx context.Context, date time.Time) ([]courtreserve.ConsolidatedSlot, error) {
	return f.cells, f.err
}

func (f *fakePortal) AvailableCourts(ctx context.Context, date time.Time, start slots.TimeOfDay, d int) ([]int, error) {
	k := key(start, d)
	f.mu.Lock()
	f.probed = append(f.probed, k)
	delay := f.delay[k]
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.windows[k], nil
}

func (f *fakePortal) DurationOptions(ctx context.Context, date time.Time, start slots.TimeOfDay, d int) ([]int, error) {
	return f.options, nil
}

func (f *fakePortal) probedSet() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, k := range f.probed {
		out[k] = true
	}
	return out
}

var pacific = venue.USClock{Std: -8 * time.Hour}

func mustSlots(t *testing.T, base string) []slots.TimeOfDay {
	t.Helper()
	s, err := slots.GenerateTimeSlots(base)
	require.NoError(t, err)
	return s
}

func TestWholeDayConvertsUTC(t *testing.T) {
	// October is daylight time: 01:00Z on the 17th is 18:00 on the 16th.
	f := &fakePortal{cells: []courtreserve.ConsolidatedSlot{
		{ID: "Pickleball10/17/2025 01:00:00", Courts: []int{5, 7, 9}},
		{ID: "Pickleball10/17/2025 01:30:00", Courts: []int{5, 7}},
		{ID: "Pickleball10/17/2025 02:00:00", Courts: []int{5, 7}},
		{ID: "garbage", Courts: []int{1}},
	}}
	date := time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC)
	w := &WholeDay{Clock: pacific}
	av, err := w.Probe(context.Background(), f, Request{Date: date, Slots: mustSlots(t, "18:00"), Durations: []int{90, 30}, Need: 2})
	require.NoError(t, err)

	m := av.(*allocator.AvailabilityMap)
	assert.Equal(t, 3, m.Len())
	c, ok := m.At(slots.Clock(18, 0))
	require.True(t, ok)
	assert.Equal(t, []int{5, 7, 9}, c.Sorted())

	got := allocator.Allocate(av, mustSlots(t, "18:00"), []int{90, 30}, 2)
	require.Len(t, got, 1)
	assert.Equal(t, 90, got[0].Duration)
	assert.Equal(t, []int{5, 7}, got[0].Courts.Sorted())
}

func TestWholeDayStandardTime(t *testing.T) {
	f := &fakePortal{cells: []courtreserve.ConsolidatedSlot{
		{ID: "Pickleball01/15/2026 02:00:00", Courts: []int{1}},
		{ID: "Pickleball 15:00:00", Courts: []int{2}},
	}}
	date := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	av, err := (&WholeDay{Clock: pacific}).Probe(context.Background(), f, Request{Date: date})
	require.NoError(t, err)
	m := av.(*allocator.AvailabilityMap)

	c, ok := m.At(slots.Clock(18, 0))
	require.True(t, ok)
	assert.Equal(t, []int{1}, c.Sorted())
	c, ok = m.At(slots.Clock(7, 0))
	require.True(t, ok)
	assert.Equal(t, []int{2}, c.Sorted())
}

func TestWholeDayPinnedCourt(t *testing.T) {
	f := &fakePortal{cells: []courtreserve.ConsolidatedSlot{
		{ID: "x10/17/2025 01:00:00", Courts: []int{5, 7}},
		{ID: "x10/17/2025 01:30:00", Courts: []int{5}},
	}}
	av, err := (&WholeDay{Clock: pacific}).Probe(context.Background(), f, Request{Date: time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC), PinnedCourt: 7})
	require.NoError(t, err)
	_, ok := av.Window(slots.Clock(18, 0), 60)
	require.True(t, ok)
	c, _ := av.Window(slots.Clock(18, 0), 30)
	assert.Equal(t, []int{7}, c.Sorted())
	c, _ = av.Window(slots.Clock(18, 0), 60)
	assert.Empty(t, c.Sorted())
}

func TestWholeDayError(t *testing.T) {
	f := &fakePortal{err: fmt.Errorf("boom: %w", internaltypes.ErrSessionStale)}
	_, err := (&WholeDay{Clock: pacific}).Probe(context.Background(), f, Request{})
	assert.ErrorIs(t, err, internaltypes.ErrSessionStale)
}

func TestPerWindowStopsAtLongestSatisfyingDuration(t *testing.T) {
	sl := mustSlots(t, "18:00")
	f := &fakePortal{windows: map[string][]int{
		key(sl[0], 90): {5, 7},
		key(sl[0], 30): {5, 7, 9},
	}}
	p := &PerWindow{}
	av, err := p.Probe(context.Background(), f, Request{Slots: sl, Durations: []int{90, 30}, Need: 2})
	require.NoError(t, err)

	got := allocator.Allocate(av, sl, []int{90, 30}, 2)
	require.Len(t, got, 1)
	assert.Equal(t, 90, got[0].Duration)
	for k := range f.probedSet() {
		assert.NotContains(t, k, "/30", "no short-duration scan once satisfied")
	}
}

func TestPerWindowCancelsRedundantProbes(t *testing.T) {
	sl := mustSlots(t, "18:00")
	f := &fakePortal{
		windows: map[string][]int{key(sl[0], 60): {1}},
		delay: map[string]time.Duration{
			key(sl[1], 60): 5 * time.Second,
			key(sl[2], 60): 5 * time.Second,
			key(sl[3], 60): 5 * time.Second,
			key(sl[4], 60): 5 * time.Second,
		},
	}
	start := time.Now()
	av, err := (&PerWindow{}).Probe(context.Background(), f, Request{Slots: sl, Durations: []int{60, 30}, Need: 1})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	for _, s := range sl[1:] {
		_, ok := av.Window(s, 60)
		assert.False(t, ok, "abandoned probe %s recorded", s)
	}

	got := allocator.Allocate(av, sl, []int{60, 30}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, sl[0], got[0].Start)
}

func TestPerWindowWaitsForEarlierSlots(t *testing.T) {
	// The later slot answers first, but the closer slot decides.
	sl := mustSlots(t, "18:00")
	f := &fakePortal{
		windows: map[string][]int{key(sl[0], 60): {3}, key(sl[1], 60): {4}},
		delay:   map[string]time.Duration{key(sl[0], 60): 50 * time.Millisecond},
	}
	av, err := (&PerWindow{}).Probe(context.Background(), f, Request{Slots: sl, Durations: []int{60}, Need: 1})
	require.NoError(t, err)
	got := allocator.Allocate(av, sl, []int{60}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, []int{3}, got[0].Courts.Sorted())
}

func TestPerWindowError(t *testing.T) {
	f := &fakePortal{err: fmt.Errorf("down: %w", internaltypes.ErrRecoverableProbe)}
	_, err := (&PerWindow{Concurrency: 2}).Probe(context.Background(), f, Request{Slots: mustSlots(t, "18:00"), Durations: []int{60}, Need: 1})
	assert.ErrorIs(t, err, internaltypes.ErrRecoverableProbe)
}

func TestPerWindowPinnedCourtSkipsNetwork(t *testing.T) {
	f := &fakePortal{}
	sl := mustSlots(t, "18:00")
	av, err := (&PerWindow{}).Probe(context.Background(), f, Request{Slots: sl, Durations: []int{120, 60}, Need: 1, PinnedCourt: 12})
	require.NoError(t, err)
	assert.Empty(t, f.probedSet())
	got := allocator.Allocate(av, sl, []int{120, 60}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, 120, got[0].Duration)
	assert.Equal(t, []int{12}, got[0].Courts.Sorted())
}

func TestPerWindowDurationDiscovery(t *testing.T) {
	sl := mustSlots(t, "18:00")
	f := &fakePortal{options: []int{90, 60}, windows: map[string][]int{key(sl[0], 60): {2}}}
	_, err := (&PerWindow{DiscoverDurations: true}).Probe(context.Background(), f, Request{Slots: sl, Durations: []int{120, 90, 60, 30}, Need: 1})
	require.NoError(t, err)
	for k := range f.probedSet() {
		assert.NotContains(t, k, "/120")
		assert.NotContains(t, k, "/30")
	}
}

type failingProber struct{ calls int }

func (f *failingProber) Probe(context.Context, Portal, Request) (allocator.Availability, error) {
	f.calls++
	return nil, internaltypes.ErrRecoverableProbe
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	inner := &failingProber{}
	b := NewBreaker("test", inner, nil)
	for i := 0; i < 5; i++ {
		_, err := b.Probe(context.Background(), nil, Request{})
		assert.ErrorIs(t, err, internaltypes.ErrRecoverableProbe)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Probe(context.Background(), nil, Request{})
	assert.ErrorIs(t, err, internaltypes.ErrRecoverableProbe)
	assert.Equal(t, 5, inner.calls)
}

type staleProber struct{}

func (staleProber) Probe(context.Context, Portal, Request) (allocator.Availability, error) {
	return nil, internaltypes.ErrSessionStale
}

func TestBreakerIgnoresStaleSessions(t *testing.T) {
	b := NewBreaker("test", staleProber{}, nil)
	for i := 0; i < 10; i++ {
		_, err := b.Probe(context.Background(), nil, Request{})
		assert.ErrorIs(t, err, internaltypes.ErrSessionStale)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestNewSelectsStrategy(t *testing.T) {
	sv, _ := venue.Builtin("sunnyvale")
	b := New(sv, nil).(*Breaker)
	assert.IsType(t, &WholeDay{}, b.next)

	sc, _ := venue.Builtin("santa-clara")
	b = New(sc, nil).(*Breaker)
	assert.IsType(t, &PerWindow{}, b.next)
}
