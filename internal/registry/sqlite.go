package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Praises003/aether/internal/database"
)

// SQLiteStore keeps descriptors in the functions table.
type SQLiteStore struct {
	db *database.DB
}

func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const selectColumns = `
	identifier, name, description, execution_type, endpoint, http_method,
	docs_url, price_hbar, payee_account, active, created_at, updated_at
`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Descriptor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM functions WHERE identifier = ?`,
		NormalizeID(id),
	)

	d, err := scanDescriptor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting function: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Descriptor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM functions ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}
	defer rows.Close()

	var out []*Descriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning function: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Upsert(ctx context.Context, d *Descriptor) error {
	if err := Prepare(d); err != nil {
		return err
	}
	stamp(d, time.Now().UTC())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO functions (
			identifier, name, description, execution_type, endpoint, http_method,
			docs_url, price_hbar, payee_account, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			execution_type = excluded.execution_type,
			endpoint = excluded.endpoint,
			http_method = excluded.http_method,
			docs_url = excluded.docs_url,
			price_hbar = excluded.price_hbar,
			payee_account = excluded.payee_account,
			active = excluded.active,
			updated_at = excluded.updated_at
	`,
		d.Identifier, d.Name, d.Description, string(d.ExecutionType), d.Endpoint, d.HTTPMethod,
		d.DocsURL, d.PriceHbar.String(), d.PayeeAccount, d.Active,
		d.CreatedAt.Format(time.RFC3339Nano), d.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting function: %w", database.ClassifyError(err))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDescriptor(row scanner) (*Descriptor, error) {
	var (
		d                    Descriptor
		execType, price      string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&d.Identifier, &d.Name, &d.Description, &execType, &d.Endpoint, &d.HTTPMethod,
		&d.DocsURL, &price, &d.PayeeAccount, &d.Active, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ExecutionType = ExecutionType(execType)
	d.PriceHbar = json.Number(price)
	d.CreatedAt = database.ParseTime(createdAt)
	d.UpdatedAt = database.ParseTime(updatedAt)
	return &d, nil
}
