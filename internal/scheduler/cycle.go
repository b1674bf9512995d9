package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/booking"
	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/notify"
	"github.com/example/courtsniper/internal/probe"
)

// CycleReport is the outcome of one poll.
type CycleReport struct {
	ID            uuid.UUID
	Venue         string
	Poll          int
	Started       time.Time
	Finished      time.Time
	Opportunities []allocator.Opportunity
	Assignments   []allocator.Assignment
	Attempts      []booking.Attempt
	Booked        int
	Unavailable   int
	Failed        int
	// Err is the probe error when no opportunity could be found.
	Err error
}

// Cycle is the history row for the report.
func (r CycleReport) Cycle() history.Cycle {
	c := history.Cycle{
		ID:            r.ID,
		Venue:         r.Venue,
		Poll:          r.Poll,
		Started:       r.Started,
		Finished:      r.Finished,
		Opportunities: len(r.Opportunities),
		Booked:        r.Booked,
		Unavailable:   r.Unavailable,
		Failed:        r.Failed,
	}
	if r.Err != nil {
		c.Error = r.Err.Error()
	}
	return c
}

func (r CycleReport) HistoryAttempts() []history.Attempt {
	out := make([]history.Attempt, len(r.Attempts))
	for i, a := range r.Attempts {
		out[i] = history.Attempt{
			ID:       a.ID,
			CycleID:  r.ID,
			Actor:    a.Actor,
			Slot:     a.Assignment.Opportunity.Start.String(),
			Duration: a.Assignment.Opportunity.Duration,
			Court:    a.Assignment.Court,
			Outcome:  a.Outcome.String(),
			Tries:    a.Tries,
			Message:  a.Message,
			Started:  a.Started,
			Finished: a.Finished,
		}
	}
	return out
}

// Hunt probes once and returns what would be booked, without booking.
func (s *Scheduler) Hunt(ctx context.Context) ([]allocator.Opportunity, []allocator.Assignment, error) {
	if len(s.Accounts) == 0 {
		return nil, nil, errors.New("scheduler: no accounts")
	}
	s.init()
	opps, err := s.plan(ctx, 1)
	if err != nil {
		return nil, nil, err
	}
	return opps, allocator.Assign(opps, len(s.Accounts)), nil
}

// plan probes with the hunter account up to burst times and allocates
// the first non-empty result.
func (s *Scheduler) plan(ctx context.Context, burst int) ([]allocator.Opportunity, error) {
	hunter := s.Accounts[0]
	log := s.Log.With(zap.String("actor", hunter.Email()))
	req := probe.Request{
		Date:        s.Date,
		Slots:       s.Slots,
		Durations:   s.Durations,
		Need:        len(s.Accounts),
		PinnedCourt: s.PinnedCourt,
	}
	if burst < 1 {
		burst = 1
	}

	var lastErr error
	for attempt := 1; attempt <= burst; attempt++ {
		if attempt > 1 {
			log.Info("retrying probe", zap.Int("attempt", attempt), zap.Int("max", burst))
			if err := sleep(ctx, s.Venue.Cadence.BurstPause); err != nil {
				return nil, err
			}
		}
		h, err := hunter.Session(ctx)
		if err != nil {
			if errors.Is(err, internaltypes.ErrFatalAuth) {
				return nil, err
			}
			log.Warn("hunter session unavailable", zap.Error(err))
			lastErr = err
			continue
		}
		av, err := s.Prober.Probe(ctx, h.Client, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, internaltypes.ErrSessionStale) {
				log.Warn("hunter session stale, refreshing", zap.Error(err))
				hunter.MarkStale(h)
				if _, rerr := hunter.Reauthenticate(ctx, h, true); rerr != nil {
					log.Warn("hunter refresh failed", zap.Error(rerr))
				}
				continue
			}
			if !internaltypes.IsRetryable(err) {
				log.Error("probe failed, not retrying", zap.Error(err))
				return nil, err
			}
			log.Warn("probe failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		lastErr = nil
		if opps := allocator.Allocate(av, s.Slots, s.Durations, req.Need); len(opps) > 0 {
			return opps, nil
		}
	}
	return nil, lastErr
}

func (s *Scheduler) cycle(ctx context.Context, poll, burst int) CycleReport {
	rep := CycleReport{ID: uuid.New(), Venue: s.Venue.Name, Poll: poll, Started: s.Now()}
	log := s.Log.With(zap.String("venue", s.Venue.Name), zap.Int("cycle", poll))
	log.Info("searching for courts", zap.Int("burst", burst))

	rep.Opportunities, rep.Err = s.plan(ctx, burst)
	for _, o := range rep.Opportunities {
		log.Info("opportunity", zap.Stringer("slot", o.Start), zap.Int("duration", o.Duration), zap.Stringer("courts", o.Courts))
	}
	if len(rep.Opportunities) > 0 {
		rep.Assignments = allocator.Assign(rep.Opportunities, len(s.Accounts))
		rep.Attempts = s.book(ctx, rep.Assignments)
	}
	for _, a := range rep.Attempts {
		switch a.Outcome {
		case booking.Booked:
			rep.Booked++
		case booking.Unavailable:
			rep.Unavailable++
		default:
			rep.Failed++
			log.Warn("booking failed", zap.String("actor", a.Actor), zap.String("message", a.Message))
		}
	}
	rep.Finished = s.Now()

	switch {
	case rep.Err != nil:
		log.Warn("poll cycle failed", zap.Error(rep.Err))
	case len(rep.Opportunities) == 0:
		log.Info("no courts available yet")
	default:
		log.Info("poll cycle finished",
			zap.Int("booked", rep.Booked),
			zap.Int("unavailable", rep.Unavailable),
			zap.Int("failed", rep.Failed),
			zap.Int("assigned", len(rep.Assignments)))
	}

	s.report(ctx, rep)
	return rep
}

// book runs every assignment at once; each actor's result is independent.
func (s *Scheduler) book(ctx context.Context, as []allocator.Assignment) []booking.Attempt {
	out := make([]booking.Attempt, len(as))
	var g errgroup.Group
	for i, a := range as {
		i, a := i, a
		g.Go(func() error {
			out[i] = s.Executor.Book(ctx, s.Accounts[a.Actor], a)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Scheduler) report(ctx context.Context, rep CycleReport) {
	ctx = context.WithoutCancel(ctx)
	switch {
	case rep.Booked > 0:
		var booked []string
		for _, a := range rep.Attempts {
			if a.Outcome == booking.Booked {
				booked = append(booked, fmt.Sprintf("%s (%dmin, court %d)",
					a.Assignment.Opportunity.Start, a.Assignment.Opportunity.Duration, a.Assignment.Court))
			}
		}
		s.notify(ctx, notify.Booked, fmt.Sprintf("Booked %d/%d courts: %s",
			rep.Booked, len(rep.Attempts), strings.Join(booked, ", ")))
	case len(rep.Attempts) > 0 && rep.Unavailable == 0:
		s.notify(ctx, notify.Missed, fmt.Sprintf("All %d booking attempts failed", len(rep.Attempts)))
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.History.Record(hctx, rep.Cycle(), rep.HistoryAttempts()); err != nil {
		s.Log.Warn("history record failed", zap.Error(err))
	}

	s.mu.Lock()
	s.status.Polls = rep.Poll
	c := rep.Cycle()
	s.status.Last = &c
	if rep.Booked > 0 {
		s.status.Booked = true
	}
	s.mu.Unlock()

	if s.OnCycle != nil {
		s.OnCycle(rep)
	}
}
