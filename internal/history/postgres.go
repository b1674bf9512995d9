package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/courtsniper/internal/db"
	"github.com/example/courtsniper/internal/migrate"
)

type Postgres struct {
	db *db.DB
}

func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	d, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, err
	}
	return &Postgres{db: d}, nil
}

func (p *Postgres) Record(ctx context.Context, c Cycle, attempts []Attempt) error {
	return p.db.InTx(ctx, func(q db.Querier) error {
		err := q.Exec(ctx, `INSERT INTO cycles (id, venue, poll, started_at, finished_at, opportunities, booked, unavailable, failed, error)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			c.ID.String(), c.Venue, c.Poll, c.Started, c.Finished, c.Opportunities, c.Booked, c.Unavailable, c.Failed, c.Error)
		if err != nil {
			return db.WrapNotFound(err)
		}
		for _, a := range attempts {
			err := q.Exec(ctx, `INSERT INTO attempts (id, cycle_id, actor, slot, duration_min, court, outcome, tries, message, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				a.ID.String(), c.ID.String(), a.Actor, a.Slot, a.Duration, a.Court, a.Outcome, a.Tries, a.Message, a.Started, a.Finished)
			if err != nil {
				return db.WrapNotFound(err)
			}
		}
		return nil
	})
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := p.db.Query(ctx, `SELECT id::text, venue, poll, started_at, finished_at, opportunities, booked, unavailable, failed, error
FROM cycles ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	defer rows.Close()
	var out []Cycle
	for rows.Next() {
		var c Cycle
		var id string
		if err := rows.Scan(&id, &c.Venue, &c.Poll, &c.Started, &c.Finished, &c.Opportunities, &c.Booked, &c.Unavailable, &c.Failed, &c.Error); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) Attempts(ctx context.Context, cycleID uuid.UUID) ([]Attempt, error) {
	rows, err := p.db.Query(ctx, `SELECT id::text, actor, slot, duration_min, court, outcome, tries, message, started_at, finished_at
FROM attempts WHERE cycle_id = $1 ORDER BY started_at, actor`, cycleID.String())
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a := Attempt{CycleID: cycleID}
		var id string
		if err := rows.Scan(&id, &a.Actor, &a.Slot, &a.Duration, &a.Court, &a.Outcome, &a.Tries, &a.Message, &a.Started, &a.Finished); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
