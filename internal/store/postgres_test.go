package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidquote/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, spec_path, project_name, building_type, floor_area, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	cols := []string{"id", "spec_path", "project_name", "building_type", "floor_area", "status", "result", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"run-1", "spec.pdf", "○○小学校", "学校", 2145.0, "complete",
			[]byte(`{"total_amount":4747263,"item_count":12,"is_valid":true}`), now, now,
		))

	r, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.FacilitySchool, r.BuildingType)
	assert.Equal(t, model.RunStatusComplete, r.Status)
	require.NotNil(t, r.Result)
	assert.Equal(t, 12, r.Result.ItemCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result = \$1, status = \$2`).
		WithArgs(pgxmock.AnyArg(), "failed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.RunResult{Error: "generate: breaker open"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "spec.pdf", "○○小学校", "学校", 2145.0, "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r, err := s.CreateRun(context.Background(), model.Run{
		SpecPath: "spec.pdf", ProjectName: "○○小学校", BuildingType: model.FacilitySchool, FloorArea: 2145,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.RunStatusQueued, r.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReferences(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_price_references"}, referenceColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "price_references"`).WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	n, err := s.SaveReferences(context.Background(), gasRefs())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordCost(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO cost_records`).
		WithArgs(pgxmock.AnyArg(), "s1", "見積生成", "claude-sonnet-4-5-20250929",
			int64(1200), int64(340), int64(0), int64(0), 0.0087, 1.305, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordCost(context.Background(), model.CostRecord{
		SessionID: "s1", Operation: "見積生成", Model: "claude-sonnet-4-5-20250929",
		InputTokens: 1200, OutputTokens: 340, CostUSD: 0.0087, CostJPY: 1.305,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCosts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	cols := []string{"id", "session_id", "operation", "model", "input_tokens", "output_tokens",
		"cache_write_tokens", "cache_read_tokens", "cost_usd", "cost_jpy", "created_at"}
	mock.ExpectQuery(`FROM cost_records WHERE session_id = \$1`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("c1", "s1", "見積生成", "claude-sonnet-4-5-20250929", int64(1200), int64(340), int64(0), int64(0), 0.0087, 1.305, now))

	recs, err := s.ListCosts(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c1", recs[0].ID)
	assert.Equal(t, int64(1540), recs[0].TotalTokens())
	assert.NoError(t, mock.ExpectationsWereMet())
}
