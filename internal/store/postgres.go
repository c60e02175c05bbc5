package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bidquote/internal/db"
	"github.com/sells-group/bidquote/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS price_references (
	item_id        TEXT PRIMARY KEY,
	description    TEXT NOT NULL,
	discipline     TEXT NOT NULL,
	unit           TEXT NOT NULL,
	unit_price     DOUBLE PRECISION NOT NULL,
	specification  TEXT NOT NULL DEFAULT '',
	quantity       DOUBLE PRECISION,
	location       TEXT NOT NULL DEFAULT '',
	source_project TEXT NOT NULL DEFAULT '',
	context_tags   TEXT[] NOT NULL DEFAULT '{}',
	vendor         TEXT NOT NULL DEFAULT '',
	valid_from     TEXT NOT NULL DEFAULT '',
	valid_to       TEXT NOT NULL DEFAULT '',
	imported_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	spec_path     TEXT NOT NULL DEFAULT '',
	project_name  TEXT NOT NULL DEFAULT '',
	building_type TEXT NOT NULL DEFAULT '',
	floor_area    DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'queued',
	result        JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cost_records (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id         TEXT NOT NULL,
	operation          TEXT NOT NULL,
	model              TEXT NOT NULL,
	input_tokens       BIGINT NOT NULL DEFAULT 0,
	output_tokens      BIGINT NOT NULL DEFAULT 0,
	cache_write_tokens BIGINT NOT NULL DEFAULT 0,
	cache_read_tokens  BIGINT NOT NULL DEFAULT 0,
	cost_usd           DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_jpy           DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_price_references_discipline ON price_references(discipline);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_cost_records_session ON cost_records(session_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var referenceColumns = []string{
	"item_id", "description", "discipline", "unit", "unit_price", "specification", "quantity",
	"location", "source_project", "context_tags", "vendor", "valid_from", "valid_to", "imported_at",
}

// SaveReferences bulk-upserts references by item_id.
func (s *PostgresStore) SaveReferences(ctx context.Context, refs []model.PriceReference) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(refs))
	for i, r := range refs {
		rows[i] = []any{
			r.ItemID, r.Description, string(r.Discipline), r.Unit, r.UnitPrice,
			r.Features.Specification, r.Features.Quantity, r.Features.Location, r.SourceProject,
			nonNilTags(r.ContextTags), r.Vendor, r.ValidFrom, r.ValidTo, now,
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "price_references",
		Columns:      referenceColumns,
		ConflictKeys: []string{"item_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save references")
	}
	return int(n), nil
}

func (s *PostgresStore) ListReferences(ctx context.Context, discipline model.Discipline) ([]model.PriceReference, error) {
	query := `SELECT item_id, description, discipline, unit, unit_price, specification, quantity,
		location, source_project, context_tags, vendor, valid_from, valid_to
		FROM price_references`
	var args []any
	if discipline != "" {
		query += ` WHERE discipline = $1`
		args = append(args, string(discipline))
	}
	query += ` ORDER BY item_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list references")
	}
	defer rows.Close()

	var refs []model.PriceReference
	for rows.Next() {
		var (
			r    model.PriceReference
			disc string
		)
		if err := rows.Scan(&r.ItemID, &r.Description, &disc, &r.Unit, &r.UnitPrice,
			&r.Features.Specification, &r.Features.Quantity, &r.Features.Location, &r.SourceProject,
			&r.ContextTags, &r.Vendor, &r.ValidFrom, &r.ValidTo); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reference")
		}
		r.Discipline = model.Discipline(disc)
		if len(r.ContextTags) == 0 {
			r.ContextTags = nil
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: list references iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	now := time.Now().UTC()
	run.ID = uuid.New().String()
	run.Status = model.RunStatusQueued
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, spec_path, project_name, building_type, floor_area, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.SpecPath, run.ProjectName, string(run.BuildingType), run.FloorArea,
		string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(finalStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const postgresRunColumns = `id, spec_path, project_name, building_type, floor_area, status, result, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordCost(ctx context.Context, rec model.CostRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_records (id, session_id, operation, model, input_tokens, output_tokens,
			cache_write_tokens, cache_read_tokens, cost_usd, cost_jpy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.SessionID, rec.Operation, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.CacheWriteTokens, rec.CacheReadTokens, rec.CostUSD, rec.CostJPY, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert cost record")
}

func (s *PostgresStore) ListCosts(ctx context.Context, sessionID string) ([]model.CostRecord, error) {
	query := `SELECT id, session_id, operation, model, input_tokens, output_tokens,
		cache_write_tokens, cache_read_tokens, cost_usd, cost_jpy, created_at FROM cost_records`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = $1`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list costs")
	}
	defer rows.Close()

	var recs []model.CostRecord
	for rows.Next() {
		var r model.CostRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Operation, &r.Model, &r.InputTokens, &r.OutputTokens,
			&r.CacheWriteTokens, &r.CacheReadTokens, &r.CostUSD, &r.CostJPY, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cost record")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list costs iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		r                    model.Run
		buildingType, status string
		resultJSON           []byte
	)
	if err := row.Scan(&r.ID, &r.SpecPath, &r.ProjectName, &buildingType, &r.FloorArea,
		&status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.BuildingType = model.FacilityType(buildingType)
	r.Status = model.RunStatus(status)
	if resultJSON != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
