package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS functions (
	identifier TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	execution_type TEXT NOT NULL CHECK (execution_type IN ('LOCAL', 'REMOTE')),
	endpoint TEXT NOT NULL DEFAULT '',
	http_method TEXT NOT NULL DEFAULT 'POST' CHECK (http_method IN ('GET', 'POST')),
	docs_url TEXT NOT NULL DEFAULT '',
	price_hbar NUMERIC(30, 8) NOT NULL DEFAULT 0 CHECK (price_hbar >= 0),
	payee_account TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps descriptors in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the functions table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating functions table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

type pgDescriptor struct {
	Identifier    string    `db:"identifier"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	ExecutionType string    `db:"execution_type"`
	Endpoint      string    `db:"endpoint"`
	HTTPMethod    string    `db:"http_method"`
	DocsURL       string    `db:"docs_url"`
	PriceHbar     string    `db:"price_hbar"`
	PayeeAccount  string    `db:"payee_account"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r pgDescriptor) descriptor() *Descriptor {
	return &Descriptor{
		Identifier:    r.Identifier,
		Name:          r.Name,
		Description:   r.Description,
		ExecutionType: ExecutionType(r.ExecutionType),
		Endpoint:      r.Endpoint,
		HTTPMethod:    r.HTTPMethod,
		DocsURL:       r.DocsURL,
		PriceHbar:     json.Number(r.PriceHbar),
		PayeeAccount:  r.PayeeAccount,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

const pgSelect = `
	SELECT identifier, name, description, execution_type, endpoint, http_method,
	       docs_url, price_hbar::text AS price_hbar, payee_account, active, created_at, updated_at
	FROM functions
`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Descriptor, error) {
	rows, err := s.pool.Query(ctx, pgSelect+` WHERE identifier = $1`, NormalizeID(id))
	if err != nil {
		return nil, fmt.Errorf("getting function: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[pgDescriptor])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting function: %w", err)
	}
	return row.descriptor(), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Descriptor, error) {
	rows, err := s.pool.Query(ctx, pgSelect+` ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[pgDescriptor])
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}

	out := make([]*Descriptor, 0, len(records))
	for _, r := range records {
		out = append(out, r.descriptor())
	}
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, d *Descriptor) error {
	if err := Prepare(d); err != nil {
		return err
	}
	stamp(d, time.Now().UTC())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO functions (
			identifier, name, description, execution_type, endpoint, http_method,
			docs_url, price_hbar, payee_account, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12)
		ON CONFLICT (identifier) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			execution_type = EXCLUDED.execution_type,
			endpoint = EXCLUDED.endpoint,
			http_method = EXCLUDED.http_method,
			docs_url = EXCLUDED.docs_url,
			price_hbar = EXCLUDED.price_hbar,
			payee_account = EXCLUDED.payee_account,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`,
		d.Identifier, d.Name, d.Description, string(d.ExecutionType), d.Endpoint, d.HTTPMethod,
		d.DocsURL, d.PriceHbar.String(), d.PayeeAccount, d.Active, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting function: %w", err)
	}
	return nil
}
