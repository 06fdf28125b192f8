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

	"github.com/uzuki-lab/kyotei-cli/internal/db"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_prediction": `INSERT INTO predictions (race_key, venue_id, race_number, race_date, buckets, ordered, metric_ranks, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (race_key) DO UPDATE SET buckets = $5, ordered = $6, metric_ranks = $7, created_at = $8`,
	"get_prediction":  `SELECT race_key, venue_id, race_number, race_date, buckets, ordered, metric_ranks, created_at FROM predictions WHERE race_key = $1`,
	"save_outcome":    `INSERT INTO outcomes (id, race_key, result, hit_bucket, payout, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"load_weights":    `SELECT metrics FROM weights WHERE venue_id = $1`,
	"save_weights":    `INSERT INTO weights (venue_id, metrics, updated_at) VALUES ($1, $2, $3) ON CONFLICT (venue_id) DO UPDATE SET metrics = $2, updated_at = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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
	race_key     TEXT PRIMARY KEY,
	venue_id     INTEGER NOT NULL,
	race_number  INTEGER NOT NULL,
	race_date    TEXT NOT NULL,
	buckets      JSONB NOT NULL,
	ordered      JSONB NOT NULL,
	metric_ranks JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outcomes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	race_key   TEXT NOT NULL REFERENCES predictions(race_key),
	result     TEXT NOT NULL,
	hit_bucket TEXT,
	payout     INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weights (
	venue_id   INTEGER PRIMARY KEY,
	metrics    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_predictions_venue_date ON predictions(venue_id, race_date);
CREATE INDEX IF NOT EXISTS idx_outcomes_race_key ON outcomes(race_key);
CREATE INDEX IF NOT EXISTS idx_outcomes_hit_bucket ON outcomes(hit_bucket);
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

func (s *PostgresStore) SavePrediction(ctx context.Context, p model.StoredPrediction) error {
	bucketsJSON, err := json.Marshal(p.Buckets)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal buckets")
	}
	orderedJSON, err := json.Marshal(p.Ordered)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ordered")
	}
	ranksJSON, err := json.Marshal(p.MetricRanks)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metric ranks")
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO predictions (race_key, venue_id, race_number, race_date, buckets, ordered, metric_ranks, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (race_key) DO UPDATE SET buckets = $5, ordered = $6, metric_ranks = $7, created_at = $8`,
		p.RaceKey, p.VenueID, p.RaceNumber, p.Date,
		bucketsJSON, orderedJSON, ranksJSON, createdAt,
	)
	return eris.Wrapf(err, "postgres: save prediction %s", p.RaceKey)
}

func (s *PostgresStore) GetPrediction(ctx context.Context, raceKey string) (*model.StoredPrediction, error) {
	var p model.StoredPrediction
	var bucketsJSON, orderedJSON, ranksJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT race_key, venue_id, race_number, race_date, buckets, ordered, metric_ranks, created_at FROM predictions WHERE race_key = $1`,
		raceKey,
	).Scan(&p.RaceKey, &p.VenueID, &p.RaceNumber, &p.Date,
		&bucketsJSON, &orderedJSON, &ranksJSON, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "prediction %s", raceKey)
		}
		return nil, eris.Wrapf(err, "postgres: get prediction %s", raceKey)
	}

	if err := json.Unmarshal(bucketsJSON, &p.Buckets); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal buckets")
	}
	if err := json.Unmarshal(orderedJSON, &p.Ordered); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal ordered")
	}
	if len(ranksJSON) > 0 {
		if err := json.Unmarshal(ranksJSON, &p.MetricRanks); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metric ranks")
		}
	}
	return &p, nil
}

func (s *PostgresStore) SaveOutcome(ctx context.Context, o model.Outcome) error {
	id := o.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var hitBucket *string
	if o.HitBucket != "" {
		hitBucket = &o.HitBucket
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO outcomes (id, race_key, result, hit_bucket, payout, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, o.RaceKey, o.Result, hitBucket, o.Payout, createdAt,
	)
	return eris.Wrapf(err, "postgres: save outcome for %s", o.RaceKey)
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error) {
	query := `SELECT o.id, o.race_key, o.result, o.hit_bucket, o.payout, o.created_at
	 FROM outcomes o
	 JOIN predictions p ON p.race_key = o.race_key
	 WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RaceKey != "" {
		query += fmt.Sprintf(` AND o.race_key = $%d`, argIdx)
		args = append(args, filter.RaceKey)
		argIdx++
	}
	if filter.VenueID > 0 {
		query += fmt.Sprintf(` AND p.venue_id = $%d`, argIdx)
		args = append(args, filter.VenueID)
		argIdx++
	}
	if filter.Date != "" {
		query += fmt.Sprintf(` AND p.race_date = $%d`, argIdx)
		args = append(args, filter.Date)
		argIdx++
	}
	if filter.Bucket != "" {
		query += fmt.Sprintf(` AND o.hit_bucket = $%d`, argIdx)
		args = append(args, filter.Bucket)
		argIdx++
	}
	query += ` ORDER BY o.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var hitBucket *string
		if err := rows.Scan(&o.ID, &o.RaceKey, &o.Result, &hitBucket, &o.Payout, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		if hitBucket != nil {
			o.HitBucket = *hitBucket
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func (s *PostgresStore) LoadWeights(ctx context.Context, venueID int) (model.WeightSet, error) {
	var metricsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT metrics FROM weights WHERE venue_id = $1`,
		venueID,
	).Scan(&metricsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.WeightSet{}, eris.Wrapf(ErrNotFound, "postgres: weights for venue %d", venueID)
		}
		return model.WeightSet{}, eris.Wrapf(err, "postgres: load weights for venue %d", venueID)
	}

	var w model.WeightSet
	if err := json.Unmarshal(metricsJSON, &w); err != nil {
		return model.WeightSet{}, eris.Wrap(err, "postgres: unmarshal weights")
	}
	return w, nil
}

func (s *PostgresStore) SaveWeights(ctx context.Context, venueID int, w model.WeightSet) error {
	metricsJSON, err := json.Marshal(w)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal weights")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO weights (venue_id, metrics, updated_at) VALUES ($1, $2, $3) ON CONFLICT (venue_id) DO UPDATE SET metrics = $2, updated_at = $3`,
		venueID, metricsJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save weights for venue %d", venueID)
}
