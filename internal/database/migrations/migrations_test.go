package migrations

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	records, err := Applied(ctx, db)
	if err != nil {
		t.Fatalf("Applied() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", len(records))
	}
	if records[0].Version != 1 || records[0].Name != "functions" {
		t.Errorf("first record = %+v, want version 1 functions", records[0])
	}
	if records[1].Version != 2 || records[1].Name != "topics" {
		t.Errorf("second record = %+v, want version 2 topics", records[1])
	}
	for _, r := range records {
		if len(r.Checksum) != 64 {
			t.Errorf("record %d checksum = %q", r.Version, r.Checksum)
		}
		if r.AppliedAt.IsZero() {
			t.Errorf("record %d has no applied_at", r.Version)
		}
	}

	for _, table := range []string{"functions", "topics", "topic_messages"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Run(ctx, db); err != nil {
			t.Fatalf("Run() #%d failed: %v", i+1, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM _aether_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 recorded migrations, got %d", count)
	}
}

func TestRun_ModifiedMigration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := Run(ctx, db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE _aether_migrations SET checksum = 'stale' WHERE version = 1"); err != nil {
		t.Fatal(err)
	}

	if err := Run(ctx, db); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Run() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestApply_OnlyPending(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := parse("001_a.sql", []byte("CREATE TABLE a (id INTEGER);"))
	if err != nil {
		t.Fatal(err)
	}
	if err := apply(ctx, db, []migration{first}); err != nil {
		t.Fatalf("apply() failed: %v", err)
	}

	second, err := parse("002_b.sql", []byte("CREATE TABLE b (id INTEGER);"))
	if err != nil {
		t.Fatal(err)
	}
	// Re-running 001 would fail on the existing table if it were not skipped.
	if err := apply(ctx, db, []migration{first, second}); err != nil {
		t.Fatalf("apply() with a pending migration failed: %v", err)
	}

	records, err := Applied(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Name != "b" {
		t.Errorf("records = %+v", records)
	}
}

func TestApply_FailedMigrationRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	bad, err := parse("001_bad.sql", []byte("CREATE TABLE ok (id INTEGER);\nNOT VALID SQL;"))
	if err != nil {
		t.Fatal(err)
	}
	if err := apply(ctx, db, []migration{bad}); err == nil {
		t.Fatal("apply() expected error, got nil")
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("statement from the failed migration was committed")
	}

	records, err := Applied(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("failed migration was recorded: %+v", records)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		name     string
		wantErr  bool
	}{
		{filename: "001_functions.sql", version: 1, name: "functions"},
		{filename: "010_topic_log.sql", version: 10, name: "topic_log"},
		{filename: "functions.sql", wantErr: true},
		{filename: "abc_functions.sql", wantErr: true},
		{filename: "000_zero.sql", wantErr: true},
		{filename: "003_.sql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m, err := parse(tt.filename, []byte("SELECT 1;"))
			if tt.wantErr {
				if err == nil {
					t.Errorf("parse() expected error, got %+v", m)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse() failed: %v", err)
			}
			if m.version != tt.version || m.name != tt.name {
				t.Errorf("parse() = %d %q, want %d %q", m.version, m.name, tt.version, tt.name)
			}
		})
	}

	a, _ := parse("001_a.sql", []byte("SELECT 1;"))
	b, _ := parse("001_a.sql", []byte("SELECT 2;"))
	if a.checksum == b.checksum {
		t.Error("different bodies produced the same checksum")
	}
}

func TestStatements(t *testing.T) {
	body := `
-- leading comment
CREATE TABLE a (v TEXT DEFAULT 'x;y');
  -- indented comment
CREATE TABLE b (id INTEGER)
`
	got := statements(body)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (v TEXT DEFAULT 'x;y')" {
		t.Errorf("unexpected first statement: %q", got[0])
	}
	if got[1] != "CREATE TABLE b (id INTEGER)" {
		t.Errorf("unexpected second statement: %q", got[1])
	}

	if got := statements("-- only a comment\n"); len(got) != 0 {
		t.Errorf("expected no statements, got %q", got)
	}
}
