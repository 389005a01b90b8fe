package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/parts-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS parts (
	id                  TEXT PRIMARY KEY,
	generic_description TEXT NOT NULL,
	oem_part_number     TEXT NOT NULL,
	manufacturer        TEXT NOT NULL DEFAULT '',
	description         TEXT,
	alternates          TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(manufacturer, oem_part_number)
);

CREATE TABLE IF NOT EXISTS suppliers (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	domain      TEXT,
	reliability REAL NOT NULL DEFAULT 0.5,
	sightings   INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS manuals (
	id         TEXT PRIMARY KEY,
	make       TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	title      TEXT,
	url        TEXT NOT NULL,
	local_path TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_parts_description ON parts(generic_description);
CREATE INDEX IF NOT EXISTS idx_parts_manufacturer ON parts(manufacturer);
CREATE INDEX IF NOT EXISTS idx_manuals_make_model ON manuals(make, model);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqlitePartColumns = `id, generic_description, oem_part_number, manufacturer, description, alternates, created_at, updated_at`

func (s *SQLiteStore) FindExactPart(ctx context.Context, description, manufacturer string) (*model.Part, error) {
	query := `SELECT ` + sqlitePartColumns + ` FROM parts WHERE lower(generic_description) = lower(?)`
	args := []any{description}
	if manufacturer != "" {
		query += ` AND lower(manufacturer) = lower(?)`
		args = append(args, manufacturer)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`

	part, err := scanSQLitePart(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find exact part")
	}
	return part, nil
}

func (s *SQLiteStore) FindSimilarParts(ctx context.Context, description string, limit int) ([]model.Part, error) {
	keywords := descriptionKeywords(description)
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var clauses []string
	var args []any
	for _, kw := range keywords {
		clauses = append(clauses, `lower(generic_description) LIKE ?`)
		args = append(args, "%"+kw+"%")
	}
	query := fmt.Sprintf(`SELECT %s FROM parts WHERE %s ORDER BY updated_at DESC LIMIT %d`,
		sqlitePartColumns, strings.Join(clauses, " OR "), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find similar parts")
	}
	defer rows.Close() //nolint:errcheck

	var parts []model.Part
	for rows.Next() {
		part, err := scanSQLitePart(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan part")
		}
		parts = append(parts, *part)
	}
	return parts, eris.Wrap(rows.Err(), "sqlite: iterate parts")
}

// UpsertPart inserts or updates by the (manufacturer, oem_part_number)
// natural key, merging alternate part numbers instead of overwriting them.
// Each call is one transaction.
func (s *SQLiteStore) UpsertPart(ctx context.Context, part model.Part) (*model.Part, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert part")
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := scanSQLitePart(tx.QueryRowContext(ctx,
		`SELECT `+sqlitePartColumns+` FROM parts
		 WHERE lower(manufacturer) = lower(?) AND lower(oem_part_number) = lower(?)`,
		part.Manufacturer, part.OEMPartNumber,
	))
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: lookup part")
	}

	now := time.Now().UTC()

	if err == sql.ErrNoRows {
		part.ID = uuid.New().String()
		part.CreatedAt = now
		part.UpdatedAt = now
		part.AlternatePartNumbers = mergeAlternates(nil, part.AlternatePartNumbers)
		alternates, merr := json.Marshal(part.AlternatePartNumbers)
		if merr != nil {
			return nil, eris.Wrap(merr, "sqlite: marshal alternates")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO parts (id, generic_description, oem_part_number, manufacturer, description, alternates, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			part.ID, part.GenericDescription, part.OEMPartNumber, part.Manufacturer,
			part.Description, string(alternates), now, now,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert part")
		}
		return &part, eris.Wrap(tx.Commit(), "sqlite: commit upsert part")
	}

	merged := mergeAlternates(existing.AlternatePartNumbers, part.AlternatePartNumbers)
	alternates, merr := json.Marshal(merged)
	if merr != nil {
		return nil, eris.Wrap(merr, "sqlite: marshal alternates")
	}

	description := existing.Description
	if part.Description != "" {
		description = part.Description
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE parts SET generic_description = ?, description = ?, alternates = ?, updated_at = ? WHERE id = ?`,
		part.GenericDescription, description, string(alternates), now, existing.ID,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: update part")
	}

	existing.GenericDescription = part.GenericDescription
	existing.Description = description
	existing.AlternatePartNumbers = merged
	existing.UpdatedAt = now
	return existing, eris.Wrap(tx.Commit(), "sqlite: commit upsert part")
}

func (s *SQLiteStore) ListParts(ctx context.Context, limit, offset int) ([]model.Part, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePartColumns+` FROM parts ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list parts")
	}
	defer rows.Close() //nolint:errcheck

	var parts []model.Part
	for rows.Next() {
		part, err := scanSQLitePart(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan part")
		}
		parts = append(parts, *part)
	}
	return parts, eris.Wrap(rows.Err(), "sqlite: iterate parts")
}

// UpsertSupplier records a supplier sighting, nudging reliability upward.
// Each call is one transaction.
func (s *SQLiteStore) UpsertSupplier(ctx context.Context, name, domain string) (*model.Supplier, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert supplier")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var sup model.Supplier
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, domain, reliability, sightings, updated_at FROM suppliers WHERE lower(name) = lower(?)`,
		name,
	).Scan(&sup.ID, &sup.Name, &sup.Domain, &sup.Reliability, &sup.Sightings, &sup.UpdatedAt)

	if err == sql.ErrNoRows {
		sup = model.Supplier{
			ID:          uuid.New().String(),
			Name:        name,
			Domain:      domain,
			Reliability: bumpReliability(0.5),
			Sightings:   1,
			UpdatedAt:   now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO suppliers (id, name, domain, reliability, sightings, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			sup.ID, sup.Name, sup.Domain, sup.Reliability, sup.Sightings, now,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert supplier")
		}
		return &sup, eris.Wrap(tx.Commit(), "sqlite: commit upsert supplier")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup supplier")
	}

	sup.Reliability = bumpReliability(sup.Reliability)
	sup.Sightings++
	sup.UpdatedAt = now
	if domain != "" {
		sup.Domain = domain
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE suppliers SET domain = ?, reliability = ?, sightings = ?, updated_at = ? WHERE id = ?`,
		sup.Domain, sup.Reliability, sup.Sightings, now, sup.ID,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: update supplier")
	}
	return &sup, eris.Wrap(tx.Commit(), "sqlite: commit upsert supplier")
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context, limit int) ([]model.Supplier, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, domain, reliability, sightings, updated_at FROM suppliers ORDER BY reliability DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suppliers")
	}
	defer rows.Close() //nolint:errcheck

	var suppliers []model.Supplier
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Domain, &sup.Reliability, &sup.Sightings, &sup.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, eris.Wrap(rows.Err(), "sqlite: iterate suppliers")
}

func (s *SQLiteStore) GetManual(ctx context.Context, equipMake, equipModel string) (*model.Manual, error) {
	var m model.Manual
	err := s.db.QueryRowContext(ctx,
		`SELECT id, make, model, title, url, local_path, fetched_at FROM manuals
		 WHERE lower(make) = lower(?) AND lower(model) = lower(?)
		 ORDER BY fetched_at DESC LIMIT 1`,
		equipMake, equipModel,
	).Scan(&m.ID, &m.Make, &m.Model, &m.Title, &m.URL, &m.LocalPath, &m.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get manual")
	}
	return &m, nil
}

func (s *SQLiteStore) SaveManual(ctx context.Context, manual model.Manual) error {
	if manual.ID == "" {
		manual.ID = uuid.New().String()
	}
	if manual.FetchedAt.IsZero() {
		manual.FetchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manuals (id, make, model, title, url, local_path, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		manual.ID, manual.Make, manual.Model, manual.Title, manual.URL, manual.LocalPath, manual.FetchedAt,
	)
	return eris.Wrap(err, "sqlite: save manual")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePart(row rowScanner) (*model.Part, error) {
	var part model.Part
	var description sql.NullString
	var alternates string
	if err := row.Scan(
		&part.ID, &part.GenericDescription, &part.OEMPartNumber, &part.Manufacturer,
		&description, &alternates, &part.CreatedAt, &part.UpdatedAt,
	); err != nil {
		return nil, err
	}
	part.Description = description.String
	if alternates != "" {
		if err := json.Unmarshal([]byte(alternates), &part.AlternatePartNumbers); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal alternates")
		}
	}
	return &part, nil
}
