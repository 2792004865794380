// Package store persists transfer predictions and evaluation sweeps.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// DefaultListLimit caps list queries without an explicit limit.
const DefaultListLimit = 100

// PredictionFilter specifies criteria for listing predictions.
type PredictionFilter struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for transfer runs.
type Store interface {
	// Predictions
	SavePrediction(ctx context.Context, rec *model.PredictionRecord) error
	SavePredictions(ctx context.Context, recs []*model.PredictionRecord) error
	ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error)

	// Sweeps
	SaveSweep(ctx context.Context, rec *model.SweepRecord) error
	GetSweep(ctx context.Context, id string) (*model.SweepRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// stamp assigns an ID and creation time to records that have none.
func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
