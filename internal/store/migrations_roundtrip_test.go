package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestMigrationsUpDownUpPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	dir := filepath.Join("..", "..", "db", "migrations")
	if err := ApplyMigrations(ctx, db, dir, nil); err != nil {
		t.Fatalf("first up: %v", err)
	}
	// A second run finds every version recorded and changes nothing.
	if err := ApplyMigrations(ctx, db, dir, nil); err != nil {
		t.Fatalf("repeat up: %v", err)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM schema_migrations`); n != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", n)
	}

	if err := runDownMigrations(ctx, db, dir); err != nil {
		t.Fatalf("down: %v", err)
	}
	if n := countRows(t, db, `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'change_log'`); n != 0 {
		t.Fatal("change_log still present after down migrations")
	}

	if _, err := db.ExecContext(ctx, `TRUNCATE schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, dir, nil); err != nil {
		t.Fatalf("second up: %v", err)
	}

	for _, trigger := range []string{"trg_change_log_guard_update", "trg_change_log_block_delete"} {
		n := countRows(t, db, `SELECT COUNT(*) FROM information_schema.triggers WHERE trigger_name = '`+trigger+`'`)
		if n == 0 {
			t.Fatalf("trigger %s missing after re-applying migrations", trigger)
		}
	}
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

// runDownMigrations runs *.down.sql files newest first.
func runDownMigrations(ctx context.Context, db *sql.DB, dir string) error {
	downs, err := filepath.Glob(filepath.Join(dir, "*.down.sql"))
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))
	for _, file := range downs {
		contents, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(contents)) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return err
		}
	}
	return nil
}
