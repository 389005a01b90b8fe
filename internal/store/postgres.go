package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/parts-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS parts (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	generic_description TEXT NOT NULL,
	oem_part_number     TEXT NOT NULL,
	manufacturer        TEXT NOT NULL DEFAULT '',
	description         TEXT,
	alternates          JSONB NOT NULL DEFAULT '[]',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(manufacturer, oem_part_number)
);

CREATE TABLE IF NOT EXISTS suppliers (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL UNIQUE,
	domain      TEXT,
	reliability DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	sightings   INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS manuals (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	make       TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	title      TEXT,
	url        TEXT NOT NULL,
	local_path TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_parts_description ON parts(lower(generic_description));
CREATE INDEX IF NOT EXISTS idx_parts_manufacturer ON parts(lower(manufacturer));
CREATE INDEX IF NOT EXISTS idx_manuals_make_model ON manuals(lower(make), lower(model));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgPartColumns = `id, generic_description, oem_part_number, manufacturer, COALESCE(description, ''), alternates, created_at, updated_at`

func (s *PostgresStore) FindExactPart(ctx context.Context, description, manufacturer string) (*model.Part, error) {
	query := `SELECT ` + pgPartColumns + ` FROM parts WHERE lower(generic_description) = lower($1)`
	args := []any{description}
	if manufacturer != "" {
		query += ` AND lower(manufacturer) = lower($2)`
		args = append(args, manufacturer)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`

	part, err := scanPGPart(s.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find exact part")
	}
	return part, nil
}

func (s *PostgresStore) FindSimilarParts(ctx context.Context, description string, limit int) ([]model.Part, error) {
	keywords := descriptionKeywords(description)
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var clauses []string
	var args []any
	for i, kw := range keywords {
		clauses = append(clauses, fmt.Sprintf(`generic_description ILIKE $%d`, i+1))
		args = append(args, "%"+kw+"%")
	}
	query := fmt.Sprintf(`SELECT %s FROM parts WHERE %s ORDER BY updated_at DESC LIMIT %d`,
		pgPartColumns, strings.Join(clauses, " OR "), limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find similar parts")
	}
	defer rows.Close()

	var parts []model.Part
	for rows.Next() {
		part, err := scanPGPart(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan part")
		}
		parts = append(parts, *part)
	}
	return parts, eris.Wrap(rows.Err(), "postgres: iterate parts")
}

func (s *PostgresStore) UpsertPart(ctx context.Context, part model.Part) (*model.Part, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert part")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := scanPGPart(tx.QueryRow(ctx,
		`SELECT `+pgPartColumns+` FROM parts
		 WHERE lower(manufacturer) = lower($1) AND lower(oem_part_number) = lower($2)`,
		part.Manufacturer, part.OEMPartNumber,
	))
	if err != nil && err != pgx.ErrNoRows {
		return nil, eris.Wrap(err, "postgres: lookup part")
	}

	now := time.Now().UTC()

	if err == pgx.ErrNoRows {
		part.ID = uuid.New().String()
		part.CreatedAt = now
		part.UpdatedAt = now
		part.AlternatePartNumbers = mergeAlternates(nil, part.AlternatePartNumbers)
		alternates, merr := json.Marshal(part.AlternatePartNumbers)
		if merr != nil {
			return nil, eris.Wrap(merr, "postgres: marshal alternates")
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO parts (id, generic_description, oem_part_number, manufacturer, description, alternates, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			part.ID, part.GenericDescription, part.OEMPartNumber, part.Manufacturer,
			part.Description, alternates, now, now,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: insert part")
		}
		return &part, eris.Wrap(tx.Commit(ctx), "postgres: commit upsert part")
	}

	merged := mergeAlternates(existing.AlternatePartNumbers, part.AlternatePartNumbers)
	alternates, merr := json.Marshal(merged)
	if merr != nil {
		return nil, eris.Wrap(merr, "postgres: marshal alternates")
	}

	description := existing.Description
	if part.Description != "" {
		description = part.Description
	}

	if _, err := tx.Exec(ctx,
		`UPDATE parts SET generic_description = $1, description = $2, alternates = $3, updated_at = $4 WHERE id = $5`,
		part.GenericDescription, description, alternates, now, existing.ID,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: update part")
	}

	existing.GenericDescription = part.GenericDescription
	existing.Description = description
	existing.AlternatePartNumbers = merged
	existing.UpdatedAt = now
	return existing, eris.Wrap(tx.Commit(ctx), "postgres: commit upsert part")
}

func (s *PostgresStore) ListParts(ctx context.Context, limit, offset int) ([]model.Part, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPartColumns+` FROM parts ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list parts")
	}
	defer rows.Close()

	var parts []model.Part
	for rows.Next() {
		part, err := scanPGPart(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan part")
		}
		parts = append(parts, *part)
	}
	return parts, eris.Wrap(rows.Err(), "postgres: iterate parts")
}

func (s *PostgresStore) UpsertSupplier(ctx context.Context, name, domain string) (*model.Supplier, error) {
	// Single statement: insert-or-bump under the name key.
	var sup model.Supplier
	err := s.pool.QueryRow(ctx,
		`INSERT INTO suppliers (id, name, domain, reliability, sightings, updated_at)
		 VALUES ($1, $2, $3, $4, 1, now())
		 ON CONFLICT (name) DO UPDATE SET
			domain      = CASE WHEN EXCLUDED.domain <> '' THEN EXCLUDED.domain ELSE suppliers.domain END,
			reliability = LEAST(suppliers.reliability + $5, 1.0),
			sightings   = suppliers.sightings + 1,
			updated_at  = now()
		 RETURNING id, name, COALESCE(domain, ''), reliability, sightings, updated_at`,
		uuid.New().String(), name, domain, bumpReliability(0.5), reliabilityStep,
	).Scan(&sup.ID, &sup.Name, &sup.Domain, &sup.Reliability, &sup.Sightings, &sup.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert supplier")
	}
	return &sup, nil
}

func (s *PostgresStore) ListSuppliers(ctx context.Context, limit int) ([]model.Supplier, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(domain, ''), reliability, sightings, updated_at
		 FROM suppliers ORDER BY reliability DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suppliers")
	}
	defer rows.Close()

	var suppliers []model.Supplier
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Domain, &sup.Reliability, &sup.Sightings, &sup.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan supplier")
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, eris.Wrap(rows.Err(), "postgres: iterate suppliers")
}

func (s *PostgresStore) GetManual(ctx context.Context, equipMake, equipModel string) (*model.Manual, error) {
	var m model.Manual
	err := s.pool.QueryRow(ctx,
		`SELECT id, make, model, COALESCE(title, ''), url, local_path, fetched_at FROM manuals
		 WHERE lower(make) = lower($1) AND lower(model) = lower($2)
		 ORDER BY fetched_at DESC LIMIT 1`,
		equipMake, equipModel,
	).Scan(&m.ID, &m.Make, &m.Model, &m.Title, &m.URL, &m.LocalPath, &m.FetchedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get manual")
	}
	return &m, nil
}

func (s *PostgresStore) SaveManual(ctx context.Context, manual model.Manual) error {
	if manual.ID == "" {
		manual.ID = uuid.New().String()
	}
	if manual.FetchedAt.IsZero() {
		manual.FetchedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO manuals (id, make, model, title, url, local_path, fetched_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		manual.ID, manual.Make, manual.Model, manual.Title, manual.URL, manual.LocalPath, manual.FetchedAt,
	)
	return eris.Wrap(err, "postgres: save manual")
}

func scanPGPart(row pgx.Row) (*model.Part, error) {
	var part model.Part
	var alternates []byte
	if err := row.Scan(
		&part.ID, &part.GenericDescription, &part.OEMPartNumber, &part.Manufacturer,
		&part.Description, &alternates, &part.CreatedAt, &part.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(alternates) > 0 {
		if err := json.Unmarshal(alternates, &part.AlternatePartNumbers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal alternates")
		}
	}
	return &part, nil
}
