package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pfmtransfer/internal/model"
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
CREATE TABLE IF NOT EXISTS predictions (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	selection  TEXT NOT NULL,
	profile    TEXT,
	removed    TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sweeps (
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	points     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_predictions_query ON predictions(query);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertPrediction = `INSERT INTO predictions (id, query, selection, profile, removed, created_at) VALUES (?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteSavePrediction(ctx context.Context, db execer, rec *model.PredictionRecord) error {
	stamp(&rec.ID, &rec.CreatedAt)
	row, err := encodePrediction(rec)
	if err != nil {
		return err
	}
	var profile any
	if row.profile != nil {
		profile = string(row.profile)
	}
	_, err = db.ExecContext(ctx, sqliteInsertPrediction,
		rec.ID, rec.Query, string(row.selection), profile, string(row.removed), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert prediction %s", rec.Query)
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	return sqliteSavePrediction(ctx, s.db, rec)
}

// SavePredictions stores all records in one transaction.
func (s *SQLiteStore) SavePredictions(ctx context.Context, recs []*model.PredictionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range recs {
		if err := sqliteSavePrediction(ctx, tx, rec); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit predictions")
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error) {
	query := `SELECT id, query, selection, profile, removed, created_at FROM predictions WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PredictionRecord
	for rows.Next() {
		var rec model.PredictionRecord
		var selection, removed string
		var profile sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Query, &selection, &profile, &removed, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		row := predictionRow{selection: []byte(selection), removed: []byte(removed)}
		if profile.Valid {
			row.profile = []byte(profile.String)
		}
		if err := decodePrediction(&rec, row); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate predictions")
}

func (s *SQLiteStore) SaveSweep(ctx context.Context, rec *model.SweepRecord) error {
	stamp(&rec.ID, &rec.CreatedAt)
	points, err := json.Marshal(rec.Points)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sweep points")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sweeps (id, dataset, points, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Dataset, string(points), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert sweep %s", rec.Dataset)
}

func (s *SQLiteStore) GetSweep(ctx context.Context, id string) (*model.SweepRecord, error) {
	var rec model.SweepRecord
	var points string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, points, created_at FROM sweeps WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Dataset, &points, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sweep %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sweep %s", id)
	}
	if err := json.Unmarshal([]byte(points), &rec.Points); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sweep points")
	}
	return &rec, nil
}
