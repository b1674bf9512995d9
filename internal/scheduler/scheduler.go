// Package scheduler runs the poll loop: wait for the next check, probe,
// allocate, book every account in parallel, report, repeat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/courtsniper/internal/booking"
	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/notify"
	"github.com/example/courtsniper/internal/probe"
	"github.com/example/courtsniper/internal/slots"
	"github.com/example/courtsniper/internal/venue"
)

// Account is a bookable identity whose session can be warmed up.
type Account interface {
	booking.Account
	WarmUp(ctx context.Context) error
}

// Scheduler polls one venue for one target date. The first account hunts
// for courts on behalf of all of them.
type Scheduler struct {
	Venue       venue.Profile
	Date        time.Time
	Slots       []slots.TimeOfDay
	Durations   []int
	PinnedCourt int
	// SingleShot runs one cycle immediately and returns.
	SingleShot bool

	Accounts []Account
	Prober   probe.Prober
	Executor *booking.Executor
	Notifier notify.Notifier
	History  history.Store
	Log      *zap.Logger

	// OnCycle, if set, is called after every cycle.
	OnCycle func(CycleReport)
	Now     func() time.Time

	mu     sync.Mutex
	status Status
}

func (s *Scheduler) init() {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Prober == nil {
		s.Prober = probe.New(s.Venue, s.Log)
	}
	if s.Executor == nil {
		s.Executor = booking.NewExecutor(s.Date, s.Log)
	}
	if s.Notifier == nil {
		s.Notifier = notify.Noop{}
	}
	if s.History == nil {
		s.History = history.Noop{}
	}
	s.mu.Lock()
	s.status.Venue = s.Venue.Name
	s.status.Date = s.Date.Format("2006-01-02")
	s.status.Accounts = len(s.Accounts)
	s.mu.Unlock()
}

// Run polls until at least one court is booked, the context ends, or, in
// single-shot mode, after the first cycle. It returns the last cycle.
func (s *Scheduler) Run(ctx context.Context) (CycleReport, error) {
	if len(s.Accounts) == 0 {
		return CycleReport{}, errors.New("scheduler: no accounts")
	}
	s.init()
	log := s.Log.With(zap.String("venue", s.Venue.Name))

	if s.SingleShot {
		rep := s.cycle(ctx, 1, 1)
		if errors.Is(rep.Err, internaltypes.ErrFatalAuth) {
			s.fatal(ctx, rep.Err)
			return rep, rep.Err
		}
		return rep, nil
	}

	s.warmUp(ctx)
	s.notify(ctx, notify.Started, fmt.Sprintf("CourtReserve bot started - polling %s for %s with %d account(s)",
		s.Venue.Name, s.Date.Format("2006-01-02"), len(s.Accounts)))
	log.Info("poll loop started",
		zap.Duration("interval", s.Venue.Cadence.Interval),
		zap.Stringers("slots", s.Slots),
		zap.Ints("durations", s.Durations))

	clock := s.Venue.Clock()
	lastRefresh := s.Now()
	var last CycleReport
	for poll := 1; ; poll++ {
		next := NextCheck(clock.Local(s.Now()), s.Venue.Cadence)
		s.setNext(next)
		log.Debug("waiting for next check", zap.Time("at", next))
		if err := sleep(ctx, next.Sub(s.Now())); err != nil {
			return last, err
		}

		burst := 1
		if next.Minute() == 0 && next.Second() == 0 {
			burst = s.Venue.Cadence.BurstAttempts
		}
		if every := s.Venue.Cadence.SessionRefresh; every > 0 && s.Now().Sub(lastRefresh) > every {
			log.Info("refreshing sessions", zap.Duration("every", every))
			s.warmUp(ctx)
			lastRefresh = s.Now()
		}

		last = s.cycle(ctx, poll, burst)
		switch {
		case last.Booked > 0:
			return last, nil
		case errors.Is(last.Err, internaltypes.ErrFatalAuth):
			s.fatal(ctx, last.Err)
			return last, last.Err
		case ctx.Err() != nil:
			return last, ctx.Err()
		}
	}
}

// NextCheck returns the first check instant after now. Checks fall on
// multiples of the cadence interval since local midnight, using the
// precision interval inside the precision hours.
func NextCheck(now time.Time, c venue.Cadence) time.Time {
	interval := c.Interval
	if c.PrecisionInterval > 0 && now.Hour() >= c.PrecisionFromHour && now.Hour() <= c.PrecisionToHour {
		interval = c.PrecisionInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n := now.Sub(midnight)/interval + 1
	return midnight.Add(n * interval)
}

// warmUp refreshes every session in parallel. Failures are logged; the
// account gets another chance when it books.
func (s *Scheduler) warmUp(ctx context.Context) {
	var g errgroup.Group
	for _, a := range s.Accounts {
		a := a
		g.Go(func() error {
			if err := a.WarmUp(ctx); err != nil {
				s.Log.Warn("session warm-up failed", zap.String("actor", a.Email()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) notify(ctx context.Context, kind notify.Kind, msg string) {
	err := s.Notifier.Notify(ctx, notify.Event{Kind: kind, Venue: s.Venue.Name, Message: msg, At: s.Now()})
	if err != nil {
		s.Log.Warn("notify failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *Scheduler) fatal(ctx context.Context, err error) {
	s.Log.Error("stopping", zap.Error(err))
	s.notify(context.WithoutCancel(ctx), notify.Fatal, "CourtReserve bot stopped: "+err.Error())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
