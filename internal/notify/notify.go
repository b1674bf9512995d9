// Package notify delivers bot events (start, bookings, fatal errors) to
// people and other systems.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	Started Kind = "started"
	Booked  Kind = "booked"
	Missed  Kind = "missed"
	Fatal   Kind = "fatal"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	Venue   string    `json:"venue"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }
func (Noop) Close() error                        { return nil }

// Multi fans an event out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}

// Dispatcher sends events in the background so a slow sink never delays
// a booking. Failures are logged and dropped, as is anything sent after
// Close.
type Dispatcher struct {
	next    Notifier
	log     *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(next Notifier, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{next: next, log: log, timeout: 5 * time.Second}
}

func (d *Dispatcher) Notify(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Debug("notification after close dropped", zap.String("kind", string(e.Kind)))
		return nil
	}
	d.wg.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.next.Notify(ctx, e); err != nil {
			d.log.Warn("notification failed", zap.String("kind", string(e.Kind)), zap.Error(err))
		}
	}()
	return nil
}

// Close waits for pending sends, then closes the sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
	return d.next.Close()
}
