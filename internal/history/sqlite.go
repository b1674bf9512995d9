package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cycles (
    id            TEXT PRIMARY KEY,
    venue         TEXT    NOT NULL,
    poll          INTEGER NOT NULL,
    started_at    TEXT    NOT NULL,
    finished_at   TEXT    NOT NULL,
    opportunities INTEGER NOT NULL DEFAULT 0,
    booked        INTEGER NOT NULL DEFAULT 0,
    unavailable   INTEGER NOT NULL DEFAULT 0,
    failed        INTEGER NOT NULL DEFAULT 0,
    error         TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS cycles_started_at_idx ON cycles (started_at);
CREATE TABLE IF NOT EXISTS attempts (
    id           TEXT PRIMARY KEY,
    cycle_id     TEXT    NOT NULL REFERENCES cycles (id) ON DELETE CASCADE,
    actor        TEXT    NOT NULL,
    slot         TEXT    NOT NULL,
    duration_min INTEGER NOT NULL,
    court        INTEGER NOT NULL,
    outcome      TEXT    NOT NULL,
    tries        INTEGER NOT NULL,
    message      TEXT    NOT NULL DEFAULT '',
    started_at   TEXT    NOT NULL,
    finished_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_cycle_id_idx ON attempts (cycle_id);
`

// SQLite is the single-file history store for local runs.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps :memory: on a single connection
	d.SetMaxOpenConns(1)
	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, err
	}
	if _, err := d.ExecContext(ctx, sqliteSchema); err != nil {
		d.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &SQLite{db: d}, nil
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTS(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func (s *SQLite) Record(ctx context.Context, c Cycle, attempts []Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO cycles (id, venue, poll, started_at, finished_at, opportunities, booked, unavailable, failed, error)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID.String(), c.Venue, c.Poll, ts(c.Started), ts(c.Finished), c.Opportunities, c.Booked, c.Unavailable, c.Failed, c.Error)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		_, err := tx.ExecContext(ctx, `INSERT INTO attempts (id, cycle_id, actor, slot, duration_min, court, outcome, tries, message, started_at, finished_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			a.ID.String(), c.ID.String(), a.Actor, a.Slot, a.Duration, a.Court, a.Outcome, a.Tries, a.Message, ts(a.Started), ts(a.Finished))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, venue, poll, started_at, finished_at, opportunities, booked, unavailable, failed, error
FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cycle
	for rows.Next() {
		var c Cycle
		var id, started, finished string
		if err := rows.Scan(&id, &c.Venue, &c.Poll, &started, &finished, &c.Opportunities, &c.Booked, &c.Unavailable, &c.Failed, &c.Error); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if c.Started, err = parseTS(started); err != nil {
			return nil, err
		}
		if c.Finished, err = parseTS(finished); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Attempts(ctx context.Context, cycleID uuid.UUID) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, actor, slot, duration_min, court, outcome, tries, message, started_at, finished_at
FROM attempts WHERE cycle_id = ? ORDER BY started_at, actor`, cycleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a := Attempt{CycleID: cycleID}
		var id, started, finished string
		if err := rows.Scan(&id, &a.Actor, &a.Slot, &a.Duration, &a.Court, &a.Outcome, &a.Tries, &a.Message, &started, &finished); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if a.Started, err = parseTS(started); err != nil {
			return nil, err
		}
		if a.Finished, err = parseTS(finished); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
