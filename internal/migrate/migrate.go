// Package migrate applies the embedded Postgres schema files in order.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/example/courtsniper/internal/db"
)

//go:embed *.sql
var fs embed.FS

// Files lists the embedded migrations in application order.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func Up(ctx context.Context, d *db.DB) error {
	files, err := Files()
	if err != nil {
		return err
	}

	if err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now());`); err != nil {
		return err
	}

	for _, f := range files {
		var applied bool
		if err := d.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		b, err := fs.ReadFile(f)
		if err != nil {
			return err
		}
		err = d.InTx(ctx, func(q db.Querier) error {
			if err := q.Exec(ctx, string(b)); err != nil {
				return fmt.Errorf("apply %s: %w", f, err)
			}
			return q.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
