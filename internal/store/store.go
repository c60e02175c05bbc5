// Package store persists KB snapshots, estimate runs and LLM cost records.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bidquote/internal/config"
	"github.com/sells-group/bidquote/internal/model"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the estimator.
type Store interface {
	// Price KB
	SaveReferences(ctx context.Context, refs []model.PriceReference) (int, error)
	ListReferences(ctx context.Context, discipline model.Discipline) ([]model.PriceReference, error)

	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Costs
	RecordCost(ctx context.Context, rec model.CostRecord) error
	ListCosts(ctx context.Context, sessionID string) ([]model.CostRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// finalStatus is the run status recorded with a result.
func finalStatus(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
