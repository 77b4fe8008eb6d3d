package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T, dbPath string) *DB {
	t.Helper()
	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return database
}

func TestNew_CreatesSchema(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "nested", "dsync.db"))
	defer database.Close()

	for _, table := range []string{"items", "sync_runs", "config", "_migrations"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsAppliedOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dsync.db")

	openTestDB(t, dbPath).Close()
	database := openTestDB(t, dbPath)
	defer database.Close()

	applied, err := database.Applied(context.Background())
	if err != nil {
		t.Fatalf("Applied() error = %v", err)
	}
	want := []string{"001_initial.sql", "002_items.sql", "003_sync_runs.sql"}
	if len(applied) != len(want) {
		t.Fatalf("Applied() = %v, want %v", applied, want)
	}
	for i := range want {
		if applied[i] != want[i] {
			t.Errorf("Applied()[%d] = %q, want %q", i, applied[i], want[i])
		}
	}
}

func TestMarkInterruptedRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dsync.db")

	db1 := openTestDB(t, dbPath)
	_, err := db1.Conn().Exec(`
		INSERT INTO sync_runs (id, dataset_id, status, started_at) VALUES
		('running-run', 7, 'running', '2026-01-01T00:00:00Z'),
		('done-run', 7, 'completed', '2026-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatalf("insert sync runs error = %v", err)
	}
	db1.Close()

	db2 := openTestDB(t, dbPath)
	defer db2.Close()

	var status, errMsg string
	var finished sql.NullString
	err = db2.Conn().QueryRow("SELECT status, error, finished_at FROM sync_runs WHERE id = 'running-run'").Scan(&status, &errMsg, &finished)
	if err != nil {
		t.Fatalf("query sync run error = %v", err)
	}
	if status != "failed" {
		t.Errorf("run status = %s, want failed", status)
	}
	if errMsg != "interrupted by restart" {
		t.Errorf("run error = %s, want 'interrupted by restart'", errMsg)
	}
	if !finished.Valid {
		t.Fatal("interrupted run should have finished_at set")
	}
	if _, err := time.Parse(time.RFC3339, finished.String); err != nil {
		t.Errorf("finished_at %q is not RFC3339: %v", finished.String, err)
	}

	if err := db2.Conn().QueryRow("SELECT status FROM sync_runs WHERE id = 'done-run'").Scan(&status); err != nil {
		t.Fatalf("query completed run error = %v", err)
	}
	if status != "completed" {
		t.Errorf("completed run status = %s, want completed", status)
	}
}
