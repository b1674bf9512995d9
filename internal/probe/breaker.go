package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/allocator"
	"github.com/example/courtsniper/internal/internaltypes"
)

// Breaker stops hammering the portal after repeated transient failures.
// Only recoverable probe errors count against it.
type Breaker struct {
	next Prober
	cb   *gobreaker.CircuitBreaker[allocator.Availability]
}

func NewBreaker(name string, next Prober, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "probe:" + name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, internaltypes.ErrRecoverableProbe)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("probe circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[allocator.Availability](settings)}
}

func (b *Breaker) Probe(ctx context.Context, portal Portal, req Request) (allocator.Availability, error) {
	av, err := b.cb.Execute(func() (allocator.Availability, error) {
		return b.next.Probe(ctx, portal, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("probe paused: %v: %w", err, internaltypes.ErrRecoverableProbe)
	}
	return av, err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }
