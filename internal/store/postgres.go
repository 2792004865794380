package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertPrediction = `INSERT INTO predictions (id, query, selection, profile, removed, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	pgInsertSweep      = `INSERT INTO sweeps (id, dataset, points, created_at) VALUES ($1, $2, $3, $4)`
	pgGetSweep         = `SELECT id, dataset, points, created_at FROM sweeps WHERE id = $1`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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
CREATE TABLE IF NOT EXISTS predictions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query      TEXT NOT NULL,
	selection  JSONB NOT NULL,
	profile    JSONB,
	removed    JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sweeps (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset    TEXT NOT NULL,
	points     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_predictions_query ON predictions(query);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC);
`

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

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pgSavePrediction(ctx context.Context, db pgExecer, rec *model.PredictionRecord) error {
	stamp(&rec.ID, &rec.CreatedAt)
	row, err := encodePrediction(rec)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, pgInsertPrediction,
		rec.ID, rec.Query, row.selection, row.profile, row.removed, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert prediction %s", rec.Query)
}

func (s *PostgresStore) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	return pgSavePrediction(ctx, s.pool, rec)
}

// SavePredictions stores all records in one transaction.
func (s *PostgresStore) SavePredictions(ctx context.Context, recs []*model.PredictionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, rec := range recs {
		if err := pgSavePrediction(ctx, tx, rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit predictions")
}

func (s *PostgresStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error) {
	query := `SELECT id, query, selection, profile, removed, created_at FROM predictions`
	args := []any{limitOrDefault(filter.Limit), filter.Offset}
	if filter.Query != "" {
		query += ` WHERE query = $3`
		args = append(args, filter.Query)
	}
	query += ` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	var out []model.PredictionRecord
	for rows.Next() {
		var rec model.PredictionRecord
		var row predictionRow
		if err := rows.Scan(&rec.ID, &rec.Query, &row.selection, &row.profile, &row.removed, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		if err := decodePrediction(&rec, row); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate predictions")
}

func (s *PostgresStore) SaveSweep(ctx context.Context, rec *model.SweepRecord) error {
	stamp(&rec.ID, &rec.CreatedAt)
	points, err := json.Marshal(rec.Points)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sweep points")
	}
	_, err = s.pool.Exec(ctx, pgInsertSweep, rec.ID, rec.Dataset, points, rec.CreatedAt)
	return eris.Wrapf(err, "postgres: insert sweep %s", rec.Dataset)
}

func (s *PostgresStore) GetSweep(ctx context.Context, id string) (*model.SweepRecord, error) {
	var rec model.SweepRecord
	var points []byte
	err := s.pool.QueryRow(ctx, pgGetSweep, id).Scan(&rec.ID, &rec.Dataset, &points, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sweep %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sweep %s", id)
	}
	if err := json.Unmarshal(points, &rec.Points); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sweep points")
	}
	return &rec, nil
}
