package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var upMigrationRe = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// migration is one pending schema step, keyed by the numeric file prefix.
type migration struct {
	version int64
	name    string
	sql     string
}

// ApplyMigrations brings the schema up to date. Each pending .up.sql file
// runs in its own transaction; applied versions are recorded in
// schema_migrations by their numeric prefix, so files sort and compare as
// numbers rather than strings.
func ApplyMigrations(ctx context.Context, db *sql.DB, dir string) error {
	pending, err := loadMigrations(dir)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, mig := range pending {
		if applied[mig.version] {
			continue
		}
		if err := runMigration(ctx, db, mig); err != nil {
			return err
		}
	}
	return nil
}

// loadMigrations reads every up migration in dir, sorted by numeric
// version. Down migrations and stray files are ignored.
func loadMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migs []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := upMigrationRe.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration version %s: %w", entry.Name(), err)
		}
		contents, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migs = append(migs, migration{version: version, name: entry.Name(), sql: string(contents)})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })
	return migs, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return applied, nil
}

func runMigration(ctx context.Context, db *sql.DB, mig migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", mig.name, err)
	}
	if _, err := tx.ExecContext(ctx, mig.sql); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", mig.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, mig.version, mig.name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", mig.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mig.name, err)
	}
	return nil
}
