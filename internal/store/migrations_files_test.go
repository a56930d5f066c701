package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var migrationName = regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.(up|down)\.sql$`)

func TestMigrationFilesArePairedAndContiguous(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	seen := map[string]string{}
	for _, entry := range entries {
		m := migrationName.FindStringSubmatch(entry.Name())
		if m == nil {
			t.Fatalf("unexpected file in migrations dir: %s", entry.Name())
		}
		key := m[1] + "." + m[2]
		if prev, ok := seen[key]; ok {
			t.Fatalf("version %s has two %s files: %s and %s", m[1], m[2], prev, entry.Name())
		}
		seen[key] = entry.Name()
	}
	if len(seen) == 0 || len(seen)%2 != 0 {
		t.Fatalf("expected paired migration files, got %d", len(seen))
	}
	for i := 1; i <= len(seen)/2; i++ {
		for _, dir := range []string{"up", "down"} {
			if _, ok := seen[fmt.Sprintf("%04d.%s", i, dir)]; !ok {
				t.Fatalf("missing %s migration for version %04d", dir, i)
			}
		}
	}
}

func TestUpMigrationFilesSkipsDownAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.down.sql", "0001_a.up.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "0003_dir.up.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := upMigrationFiles(dir)
	if err != nil {
		t.Fatalf("upMigrationFiles: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	if got := strings.Join(names, ","); got != "0001_a.up.sql,0002_b.up.sql" {
		t.Fatalf("unexpected files: %s", got)
	}
}

func TestUpMigrationFilesMissingDir(t *testing.T) {
	if _, err := upMigrationFiles(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}
