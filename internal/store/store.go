package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// ErrNotFound reports a lookup that matched nothing. Both backends return it
// unwrapped-comparable via eris.Is.
var ErrNotFound = eris.New("store: not found")

// OutcomeFilter specifies criteria for listing settled outcomes.
type OutcomeFilter struct {
	RaceKey string `json:"race_key,omitempty"`
	VenueID int    `json:"venue_id,omitempty"`
	Date    string `json:"date,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for predictions, settled outcomes
// and learned weight profiles.
type Store interface {
	// Predictions
	SavePrediction(ctx context.Context, p model.StoredPrediction) error
	GetPrediction(ctx context.Context, raceKey string) (*model.StoredPrediction, error)

	// Outcomes
	SaveOutcome(ctx context.Context, o model.Outcome) error
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error)

	// Weight profiles. Venue 0 holds the global profile.
	LoadWeights(ctx context.Context, venueID int) (model.WeightSet, error)
	SaveWeights(ctx context.Context, venueID int, w model.WeightSet) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
