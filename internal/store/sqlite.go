package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bidquote/internal/model"
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS price_references (
	item_id        TEXT PRIMARY KEY,
	description    TEXT NOT NULL,
	discipline     TEXT NOT NULL,
	unit           TEXT NOT NULL,
	unit_price     REAL NOT NULL,
	specification  TEXT NOT NULL DEFAULT '',
	quantity       REAL,
	location       TEXT NOT NULL DEFAULT '',
	source_project TEXT NOT NULL DEFAULT '',
	context_tags   TEXT NOT NULL DEFAULT '[]',
	vendor         TEXT NOT NULL DEFAULT '',
	valid_from     TEXT NOT NULL DEFAULT '',
	valid_to       TEXT NOT NULL DEFAULT '',
	imported_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	spec_path     TEXT NOT NULL DEFAULT '',
	project_name  TEXT NOT NULL DEFAULT '',
	building_type TEXT NOT NULL DEFAULT '',
	floor_area    REAL NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'queued',
	result        TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cost_records (
	id                 TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL,
	operation          TEXT NOT NULL,
	model              TEXT NOT NULL,
	input_tokens       INTEGER NOT NULL DEFAULT 0,
	output_tokens      INTEGER NOT NULL DEFAULT 0,
	cache_write_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens  INTEGER NOT NULL DEFAULT 0,
	cost_usd           REAL NOT NULL DEFAULT 0,
	cost_jpy           REAL NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_price_references_discipline ON price_references(discipline);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_cost_records_session ON cost_records(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertReference = `
INSERT INTO price_references (
	item_id, description, discipline, unit, unit_price, specification, quantity,
	location, source_project, context_tags, vendor, valid_from, valid_to, imported_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(item_id) DO UPDATE SET
	description = excluded.description,
	discipline = excluded.discipline,
	unit = excluded.unit,
	unit_price = excluded.unit_price,
	specification = excluded.specification,
	quantity = excluded.quantity,
	location = excluded.location,
	source_project = excluded.source_project,
	context_tags = excluded.context_tags,
	vendor = excluded.vendor,
	valid_from = excluded.valid_from,
	valid_to = excluded.valid_to,
	imported_at = excluded.imported_at`

// SaveReferences upserts references by item_id in one transaction.
func (s *SQLiteStore) SaveReferences(ctx context.Context, refs []model.PriceReference) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save references")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertReference)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert reference")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range refs {
		tags, err := json.Marshal(nonNilTags(r.ContextTags))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal context tags")
		}
		var qty sql.NullFloat64
		if r.Features.Quantity != nil {
			qty = sql.NullFloat64{Float64: *r.Features.Quantity, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.ItemID, r.Description, string(r.Discipline), r.Unit, r.UnitPrice,
			r.Features.Specification, qty, r.Features.Location, r.SourceProject,
			string(tags), r.Vendor, r.ValidFrom, r.ValidTo, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert reference %s", r.ItemID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save references")
	}
	return len(refs), nil
}

// ListReferences returns references ordered by item_id, filtered by
// discipline unless it is empty.
func (s *SQLiteStore) ListReferences(ctx context.Context, discipline model.Discipline) ([]model.PriceReference, error) {
	query := `SELECT item_id, description, discipline, unit, unit_price, specification, quantity,
		location, source_project, context_tags, vendor, valid_from, valid_to
		FROM price_references`
	var args []any
	if discipline != "" {
		query += ` WHERE discipline = ?`
		args = append(args, string(discipline))
	}
	query += ` ORDER BY item_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list references")
	}
	defer rows.Close() //nolint:errcheck

	var refs []model.PriceReference
	for rows.Next() {
		var (
			r    model.PriceReference
			qty  sql.NullFloat64
			tags string
		)
		if err := rows.Scan(&r.ItemID, &r.Description, &r.Discipline, &r.Unit, &r.UnitPrice,
			&r.Features.Specification, &qty, &r.Features.Location, &r.SourceProject,
			&tags, &r.Vendor, &r.ValidFrom, &r.ValidTo); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reference")
		}
		if qty.Valid {
			r.Features.Quantity = model.Float(qty.Float64)
		}
		if err := json.Unmarshal([]byte(tags), &r.ContextTags); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal context tags for %s", r.ItemID)
		}
		if len(r.ContextTags) == 0 {
			r.ContextTags = nil
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: list references iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	now := time.Now().UTC()
	run.ID = uuid.New().String()
	run.Status = model.RunStatusQueued
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, spec_path, project_name, building_type, floor_area, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SpecPath, run.ProjectName, string(run.BuildingType), run.FloorArea,
		string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// CompleteRun stores the result and marks the run complete, or failed when
// the result carries an error.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(finalStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, spec_path, project_name, building_type, floor_area, status, result, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordCost(ctx context.Context, rec model.CostRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_records (id, session_id, operation, model, input_tokens, output_tokens,
			cache_write_tokens, cache_read_tokens, cost_usd, cost_jpy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Operation, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.CacheWriteTokens, rec.CacheReadTokens, rec.CostUSD, rec.CostJPY, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert cost record")
}

// ListCosts returns cost records oldest first, for one session or all when
// sessionID is empty.
func (s *SQLiteStore) ListCosts(ctx context.Context, sessionID string) ([]model.CostRecord, error) {
	query := `SELECT id, session_id, operation, model, input_tokens, output_tokens,
		cache_write_tokens, cache_read_tokens, cost_usd, cost_jpy, created_at FROM cost_records`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list costs")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.CostRecord
	for rows.Next() {
		var r model.CostRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Operation, &r.Model, &r.InputTokens, &r.OutputTokens,
			&r.CacheWriteTokens, &r.CacheReadTokens, &r.CostUSD, &r.CostJPY, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cost record")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list costs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.SpecPath, &r.ProjectName, &r.BuildingType, &r.FloorArea,
		&r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
