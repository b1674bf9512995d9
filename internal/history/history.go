// Package history keeps a log of poll cycles and booking attempts.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Cycle struct {
	ID            uuid.UUID `json:"id"`
	Venue         string    `json:"venue"`
	Poll          int       `json:"poll"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	Opportunities int       `json:"opportunities"`
	Booked        int       `json:"booked"`
	Unavailable   int       `json:"unavailable"`
	Failed        int       `json:"failed"`
	Error         string    `json:"error,omitempty"`
}

type Attempt struct {
	ID       uuid.UUID `json:"id"`
	CycleID  uuid.UUID `json:"cycle_id"`
	Actor    string    `json:"actor"`
	Slot     string    `json:"slot"`
	Duration int       `json:"duration"`
	Court    int       `json:"court"`
	Outcome  string    `json:"outcome"`
	Tries    int       `json:"tries"`
	Message  string    `json:"message,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

type Store interface {
	Record(ctx context.Context, c Cycle, attempts []Attempt) error
	Recent(ctx context.Context, limit int) ([]Cycle, error)
	Attempts(ctx context.Context, cycleID uuid.UUID) ([]Attempt, error)
	Close() error
}

// Open picks a store from dsn: empty disables history, postgres:// URLs
// use Postgres, anything else is a SQLite file path (optionally prefixed
// with "sqlite:").
func Open(ctx context.Context, dsn string, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch {
	case dsn == "":
		return Noop{}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("history postgres: %w", err)
		}
		log.Info("history store ready", zap.String("driver", "postgres"))
		return s, nil
	default:
		s, err := OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("history sqlite: %w", err)
		}
		log.Info("history store ready", zap.String("driver", "sqlite"))
		return s, nil
	}
}

type Noop struct{}

func (Noop) Record(context.Context, Cycle, []Attempt) error         { return nil }
func (Noop) Recent(context.Context, int) ([]Cycle, error)           { return nil, nil }
func (Noop) Attempts(context.Context, uuid.UUID) ([]Attempt, error) { return nil, nil }
func (Noop) Close() error                                           { return nil }
