// Package migrations applies the embedded schema for the registry and the
// local topic log.
//
// Files are named NNN_name.sql and applied in version order, each in its own
// transaction. The checksum of every applied file is recorded; a file edited
// after it was applied stops Run instead of silently diverging.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var sqlFS embed.FS

// ErrChecksumMismatch is returned when an applied migration's file changed.
var ErrChecksumMismatch = errors.New("applied migration was modified")

// Record is one row of the migrations table.
type Record struct {
	Version   int
	Name      string
	Checksum  string
	AppliedAt time.Time
}

type migration struct {
	version  int
	name     string
	checksum string
	body     string
}

func (m migration) String() string {
	return fmt.Sprintf("%03d_%s", m.version, m.name)
}

const createTable = `
CREATE TABLE IF NOT EXISTS _aether_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
)`

// Run applies every embedded migration not yet recorded in db.
func Run(ctx context.Context, db *sql.DB) error {
	all, err := embedded()
	if err != nil {
		return err
	}
	return apply(ctx, db, all)
}

func apply(ctx context.Context, db *sql.DB, all []migration) error {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	records, err := Applied(ctx, db)
	if err != nil {
		return err
	}
	done := make(map[int]Record, len(records))
	for _, r := range records {
		done[r.Version] = r
	}

	for _, m := range all {
		if r, ok := done[m.version]; ok {
			if r.Checksum != m.checksum {
				return fmt.Errorf("%w: %s", ErrChecksumMismatch, m)
			}
			continue
		}

		start := time.Now()
		if err := applyOne(ctx, db, m); err != nil {
			return fmt.Errorf("applying migration %s: %w", m, err)
		}
		log.Info().
			Int("version", m.version).
			Str("name", m.name).
			Dur("took", time.Since(start)).
			Msg("Applied migration")
	}
	return nil
}

// Applied lists the recorded migrations in version order.
func Applied(ctx context.Context, db *sql.DB) ([]Record, error) {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT version, name, checksum, applied_at FROM _aether_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r         Record
			appliedAt string
		)
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

func applyOne(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements(m.body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d (%s): %w", i+1, firstLine(stmt), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO _aether_migrations (version, name, checksum) VALUES (?, ?, ?)`,
		m.version, m.name, m.checksum,
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func embedded() ([]migration, error) {
	files, err := fs.Glob(sqlFS, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	all := make([]migration, 0, len(files))
	for _, file := range files {
		body, err := fs.ReadFile(sqlFS, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		m, err := parse(path.Base(file), body)
		if err != nil {
			return nil, err
		}
		all = append(all, m)
	}

	slices.SortFunc(all, func(a, b migration) int { return a.version - b.version })
	for i := 1; i < len(all); i++ {
		if all[i].version == all[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d", all[i].version)
		}
	}
	return all, nil
}

// parse builds a migration from a file named NNN_name.sql.
func parse(filename string, body []byte) (migration, error) {
	prefix, name, ok := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	version, err := strconv.Atoi(prefix)
	if !ok || err != nil || version <= 0 || name == "" {
		return migration{}, fmt.Errorf("migration %q: want NNN_name.sql", filename)
	}

	sum := sha256.Sum256(body)
	return migration{
		version:  version,
		name:     name,
		checksum: hex.EncodeToString(sum[:]),
		body:     string(body),
	}, nil
}

// statements drops "--" comment lines and splits the rest on semicolons that
// are not inside a quoted literal.
func statements(body string) []string {
	var code strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		code.WriteString(line)
		code.WriteByte('\n')
	}

	var (
		out   []string
		start int
		quote rune
	)
	src := code.String()
	for i, ch := range src {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == ';':
			if stmt := strings.TrimSpace(src[start:i]); stmt != "" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	if stmt := strings.TrimSpace(src[start:]); stmt != "" {
		out = append(out, stmt)
	}
	return out
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(stmt, "\n")
	return strings.TrimSpace(line)
}
