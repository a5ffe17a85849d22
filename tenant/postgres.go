package tenant

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:embed db_init.sql
var sqlFS embed.FS

// PostgresStore keeps tenants in a single Postgres table. The schema is
// applied on open so a fresh database works without a migration step.
type PostgresStore struct {
	conn *pgx.Conn
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	sqlFile, err := sqlFS.ReadFile("db_init.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded db_init.sql: %w", err)
	}

	if _, err := conn.Exec(ctx, string(sqlFile)); err != nil {
		return nil, fmt.Errorf("failed to execute embedded db_init.sql: %w", err)
	}

	return &PostgresStore{conn: conn}, nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *PostgresStore) FindOrCreate(
	ctx context.Context,
	id, defaultPrefix string,
) (*Tenant, error) {
	row := s.conn.QueryRow(
		ctx,
		`INSERT INTO tenants (id, prefix) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING id, prefix, api_enabled, keys`,
		id,
		defaultPrefix,
	)
	return scanTenant(row)
}

func (s *PostgresStore) Find(ctx context.Context, id string) (*Tenant, error) {
	row := s.conn.QueryRow(
		ctx,
		`SELECT id, prefix, api_enabled, keys FROM tenants WHERE id = $1`,
		id,
	)
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) Save(ctx context.Context, t *Tenant) error {
	_, err := s.conn.Exec(
		ctx,
		`UPDATE tenants SET prefix = $2, api_enabled = $3, keys = $4 WHERE id = $1`,
		t.ID,
		t.Prefix,
		t.APIEnabled,
		t.Keys,
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.conn.Query(
		ctx,
		`SELECT id, prefix, api_enabled, keys FROM tenants ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Prefix, &t.APIEnabled, &t.Keys); err != nil {
		return nil, err
	}
	if t.Keys == nil {
		t.Keys = []string{}
	}
	return &t, nil
}
