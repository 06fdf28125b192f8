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

	"github.com/uzuki-lab/kyotei-cli/internal/model"
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

func TestPostgresStore_SavePrediction_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO predictions .* ON CONFLICT`).
		WithArgs("20260825-12-08", 12, 8, "20260825",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SavePrediction(context.Background(), model.StoredPrediction{
		RaceKey:    "20260825-12-08",
		VenueID:    12,
		RaceNumber: 8,
		Date:       "20260825",
		Ordered:    []int{1, 2, 3, 4, 5, 6},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPrediction_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM predictions WHERE race_key = \$1`).
		WithArgs("20260101-01-01").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPrediction(context.Background(), "20260101-01-01")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPrediction_RoundTrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	createdAt := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"race_key", "venue_id", "race_number", "race_date",
		"buckets", "ordered", "metric_ranks", "created_at",
	}).AddRow(
		"20260825-12-08", 12, 8, "20260825",
		[]byte(`{"primary":["1-23-234"],"cover":["2-1-34"],"longshot":["5-12-12"]}`),
		[]byte(`[1,2,3,4,5,6]`),
		[]byte(`{"exhibition":[1,2,3,4,5,6]}`),
		createdAt,
	)
	mock.ExpectQuery(`SELECT .* FROM predictions WHERE race_key = \$1`).
		WithArgs("20260825-12-08").
		WillReturnRows(rows)

	got, err := s.GetPrediction(context.Background(), "20260825-12-08")
	require.NoError(t, err)
	assert.Equal(t, 12, got.VenueID)
	assert.Equal(t, []string{"1-23-234"}, got.Buckets.Primary)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got.Ordered)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got.MetricRanks[model.MetricExhibition])
	assert.Equal(t, createdAt, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOutcome_GeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO outcomes`).
		WithArgs(pgxmock.AnyArg(), "20260825-12-08", "1-3-2", pgxmock.AnyArg(), 12540, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveOutcome(context.Background(), model.Outcome{
		RaceKey:   "20260825-12-08",
		Result:    "1-3-2",
		HitBucket: "primary",
		Payout:    12540,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOutcomes_VenueFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"id", "race_key", "result", "hit_bucket", "payout", "created_at"}).
		AddRow("o-1", "20260824-11-05", "4-1-2", ptrString("longshot"), 35800, time.Now().UTC()).
		AddRow("o-2", "20260824-11-07", "6-5-4", (*string)(nil), 0, time.Now().UTC())
	mock.ExpectQuery(`FROM outcomes o.*JOIN predictions p.*AND p\.venue_id = \$1.*LIMIT \$2`).
		WithArgs(11, 100).
		WillReturnRows(rows)

	outcomes, err := s.ListOutcomes(context.Background(), OutcomeFilter{VenueID: 11})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "longshot", outcomes[0].HitBucket)
	assert.Equal(t, 35800, outcomes[0].Payout)
	assert.Empty(t, outcomes[1].HitBucket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadWeights_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT metrics FROM weights WHERE venue_id = \$1`).
		WithArgs(23).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadWeights(context.Background(), 23)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadWeights_RoundTrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"metrics"}).
		AddRow([]byte(`{"metrics":{"exhibition":0.5,"lap":0.3}}`))
	mock.ExpectQuery(`SELECT metrics FROM weights WHERE venue_id = \$1`).
		WithArgs(12).
		WillReturnRows(rows)

	w, err := s.LoadWeights(context.Background(), 12)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w.Metrics[model.MetricExhibition], 1e-9)
	assert.InDelta(t, 0.3, w.Metrics[model.MetricLap], 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveWeights_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO weights .* ON CONFLICT`).
		WithArgs(12, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveWeights(context.Background(), 12, model.WeightSet{
		Metrics: map[string]float64{model.MetricExhibition: 0.5},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptrString(s string) *string {
	return &s
}
