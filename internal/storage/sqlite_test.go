package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "checkins.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", "checkins").Scan(&name); err != nil {
		t.Fatalf("table checkins missing: %v", err)
	}
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?;", "idx_checkins_date").Scan(&name); err != nil {
		t.Fatalf("index idx_checkins_date missing: %v", err)
	}
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "checkins.db")
	ctx := context.Background()

	db, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO checkins(hostname, checkin_time, date) VALUES ('h1', '2024-01-10T08:00:00+02:00', '2024-01-10')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = db.Close()

	db, err = OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM checkins`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected surviving row, got %d", n)
	}
}

func TestCheckinsPrimaryKeyRejectsDuplicates(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "checkins.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	const q = `INSERT INTO checkins(hostname, checkin_time, date) VALUES ('h1', 'x', '2024-01-10')`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(q); err == nil {
		t.Fatal("expected primary key violation on duplicate (hostname, date)")
	}
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
