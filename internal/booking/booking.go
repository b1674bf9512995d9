// Package booking drives one account through the reservation flow for one
// assigned court, re-authenticating between attempts.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/courtreserve"
	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/session"
)

type Outcome int

const (
	Booked Outcome = iota + 1
	// Unavailable means the portal refused because the booking window has
	// not opened yet. It is not retried.
	Unavailable
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Booked:
		return "booked"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Attempt struct {
	ID         uuid.UUID
	Actor      string
	Assignment allocator.Assignment
	Outcome    Outcome
	Tries      int
	Message    string
	Started    time.Time
	Finished   time.Time
}

// Account is the session surface the executor needs.
type Account interface {
	Email() string
	Session(ctx context.Context) (session.Handle, error)
	MarkStale(h session.Handle)
	Reauthenticate(ctx context.Context, h session.Handle, hard bool) (session.Handle, error)
}

type Executor struct {
	Date        time.Time
	MaxAttempts int
	Pause       time.Duration
	Log         *zap.Logger
}

func NewExecutor(date time.Time, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{Date: date, MaxAttempts: 3, Pause: time.Second, Log: log}
}

// Book tries to reserve the assignment for acct. The first failure is
// followed by a soft re-login, the second by a hard one; the third is final.
func (e *Executor) Book(ctx context.Context, acct Account, a allocator.Assignment) Attempt {
	att := Attempt{ID: uuid.New(), Actor: acct.Email(), Assignment: a, Started: time.Now()}
	log := e.Log.With(
		zap.String("actor", att.Actor),
		zap.Stringer("slot", a.Opportunity.Start),
		zap.Int("duration", a.Opportunity.Duration),
		zap.Int("court", a.Court),
	)
	max := e.MaxAttempts
	if max <= 0 {
		max = 3
	}

	var h session.Handle
	for try := 1; ; try++ {
		att.Tries = try
		err := e.once(ctx, acct, &h, a)
		if err == nil {
			att.Outcome = Booked
			log.Info("court booked", zap.Int("attempt", try))
			break
		}
		att.Message = err.Error()
		if errors.Is(err, internaltypes.ErrBookingWindowNotOpen) {
			att.Outcome = Unavailable
			log.Info("booking window not open yet", zap.Error(err))
			break
		}
		log.Warn("booking attempt failed", zap.Int("attempt", try), zap.Int("max", max), zap.Error(err))
		if try >= max || ctx.Err() != nil || errors.Is(err, internaltypes.ErrFatalAuth) {
			att.Outcome = Failed
			break
		}

		acct.MarkStale(h)
		hard := try >= 2
		nh, rerr := acct.Reauthenticate(ctx, h, hard)
		if rerr != nil {
			log.Warn("re-login failed", zap.Bool("hard", hard), zap.Error(rerr))
			nh = session.Handle{}
		}
		h = nh

		if err := sleep(ctx, e.Pause); err != nil {
			att.Outcome = Failed
			att.Message = err.Error()
			break
		}
	}
	att.Finished = time.Now()
	return att
}

func (e *Executor) once(ctx context.Context, acct Account, h *session.Handle, a allocator.Assignment) error {
	if h.Client == nil {
		nh, err := acct.Session(ctx)
		if err != nil {
			return err
		}
		*h = nh
	}
	r := courtreserve.Reservation{
		Date:     e.Date,
		Start:    a.Opportunity.Start,
		Duration: a.Opportunity.Duration,
		Court:    a.Court,
	}
	form, err := h.Client.FetchForm(ctx, r)
	if err != nil {
		return err
	}
	return h.Client.Submit(ctx, form, r)
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
