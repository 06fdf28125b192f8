package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS predictions (
	race_key     TEXT PRIMARY KEY,
	venue_id     INTEGER NOT NULL,
	race_number  INTEGER NOT NULL,
	race_date    TEXT NOT NULL,
	buckets      TEXT NOT NULL,
	ordered      TEXT NOT NULL,
	metric_ranks TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outcomes (
	id         TEXT PRIMARY KEY,
	race_key   TEXT NOT NULL REFERENCES predictions(race_key),
	result     TEXT NOT NULL,
	hit_bucket TEXT,
	payout     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS weights (
	venue_id   INTEGER PRIMARY KEY,
	metrics    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_predictions_venue_date ON predictions(venue_id, race_date);
CREATE INDEX IF NOT EXISTS idx_outcomes_race_key ON outcomes(race_key);
CREATE INDEX IF NOT EXISTS idx_outcomes_hit_bucket ON outcomes(hit_bucket);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, p model.StoredPrediction) error {
	bucketsJSON, err := json.Marshal(p.Buckets)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal buckets")
	}
	orderedJSON, err := json.Marshal(p.Ordered)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ordered")
	}
	ranksJSON, err := json.Marshal(p.MetricRanks)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metric ranks")
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predictions (race_key, venue_id, race_number, race_date, buckets, ordered, metric_ranks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (race_key) DO UPDATE SET
		   buckets = excluded.buckets, ordered = excluded.ordered,
		   metric_ranks = excluded.metric_ranks, created_at = excluded.created_at`,
		p.RaceKey, p.VenueID, p.RaceNumber, p.Date,
		string(bucketsJSON), string(orderedJSON), string(ranksJSON), createdAt,
	)
	return eris.Wrapf(err, "sqlite: save prediction %s", p.RaceKey)
}

func (s *SQLiteStore) GetPrediction(ctx context.Context, raceKey string) (*model.StoredPrediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT race_key, venue_id, race_number, race_date, buckets, ordered, metric_ranks, created_at
		 FROM predictions WHERE race_key = ?`,
		raceKey,
	)
	return scanPrediction(row, raceKey)
}

func (s *SQLiteStore) SaveOutcome(ctx context.Context, o model.Outcome) error {
	id := o.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (id, race_key, result, hit_bucket, payout, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, o.RaceKey, o.Result, nullString(o.HitBucket), o.Payout, createdAt,
	)
	return eris.Wrapf(err, "sqlite: save outcome for %s", o.RaceKey)
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error) {
	query := `SELECT o.id, o.race_key, o.result, o.hit_bucket, o.payout, o.created_at
	 FROM outcomes o
	 JOIN predictions p ON p.race_key = o.race_key
	 WHERE 1=1`
	var args []any

	if filter.RaceKey != "" {
		query += ` AND o.race_key = ?`
		args = append(args, filter.RaceKey)
	}
	if filter.VenueID > 0 {
		query += ` AND p.venue_id = ?`
		args = append(args, filter.VenueID)
	}
	if filter.Date != "" {
		query += ` AND p.race_date = ?`
		args = append(args, filter.Date)
	}
	if filter.Bucket != "" {
		query += ` AND o.hit_bucket = ?`
		args = append(args, filter.Bucket)
	}
	query += ` ORDER BY o.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var hitBucket sql.NullString
		if err := rows.Scan(&o.ID, &o.RaceKey, &o.Result, &hitBucket, &o.Payout, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		o.HitBucket = hitBucket.String
		outcomes = append(outcomes, o)
	}
	return outcomes, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

func (s *SQLiteStore) LoadWeights(ctx context.Context, venueID int) (model.WeightSet, error) {
	var metricsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT metrics FROM weights WHERE venue_id = ?`,
		venueID,
	).Scan(&metricsJSON)
	if err == sql.ErrNoRows {
		return model.WeightSet{}, eris.Wrapf(ErrNotFound, "sqlite: weights for venue %d", venueID)
	}
	if err != nil {
		return model.WeightSet{}, eris.Wrapf(err, "sqlite: load weights for venue %d", venueID)
	}

	var w model.WeightSet
	if err := json.Unmarshal([]byte(metricsJSON), &w); err != nil {
		return model.WeightSet{}, eris.Wrap(err, "sqlite: unmarshal weights")
	}
	return w, nil
}

func (s *SQLiteStore) SaveWeights(ctx context.Context, venueID int, w model.WeightSet) error {
	metricsJSON, err := json.Marshal(w)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal weights")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO weights (venue_id, metrics, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (venue_id) DO UPDATE SET metrics = excluded.metrics, updated_at = excluded.updated_at`,
		venueID, string(metricsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save weights for venue %d", venueID)
}

// helpers

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPrediction(row scannable, raceKey string) (*model.StoredPrediction, error) {
	var p model.StoredPrediction
	var bucketsJSON, orderedJSON string
	var ranksJSON sql.NullString

	err := row.Scan(&p.RaceKey, &p.VenueID, &p.RaceNumber, &p.Date,
		&bucketsJSON, &orderedJSON, &ranksJSON, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "prediction %s", raceKey)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prediction")
	}

	if err := json.Unmarshal([]byte(bucketsJSON), &p.Buckets); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal buckets")
	}
	if err := json.Unmarshal([]byte(orderedJSON), &p.Ordered); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal ordered")
	}
	if ranksJSON.Valid && ranksJSON.String != "null" {
		if err := json.Unmarshal([]byte(ranksJSON.String), &p.MetricRanks); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metric ranks")
		}
	}
	return &p, nil
}
