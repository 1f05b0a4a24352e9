package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema step.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded schema steps ordered by file name.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		raw, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Name: name, SQL: string(raw)})
	}
	return out, nil
}

// Migrate applies every embedded step not yet recorded in schema_migrations.
// Steps are idempotent DDL and each runs in its own transaction. It returns the names applied.
func Migrate(ctx context.Context, db *sqlx.DB) ([]string, error) {
	const bootstrap = `CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`
	if _, err := db.ExecContext(ctx, bootstrap); err != nil {
		return nil, fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	steps, err := Migrations()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, step := range steps {
		var exists bool
		if err := db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, step.Name); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", step.Name, err)
		}
		if exists {
			continue
		}
		if err := applyStep(ctx, db, step); err != nil {
			return applied, err
		}
		applied = append(applied, step.Name)
	}
	return applied, nil
}

func applyStep(ctx context.Context, db *sqlx.DB, step Migration) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", step.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, step.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", step.Name, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, step.Name); err != nil {
		return fmt.Errorf("record migration %s: %w", step.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", step.Name, err)
	}
	return nil
}
