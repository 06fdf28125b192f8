// Package learn settles official results against stored predictions and
// adapts per-venue metric weights from what actually happened.
package learn

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/store"
	"github.com/uzuki-lab/kyotei-cli/internal/ticket"
)

// eta is the learning rate applied per settled race.
const eta = 0.02

// Ranks at or better than boostRank strengthen a metric's weight; ranks at
// or worse than cutRank weaken it. The midband leaves the weight alone.
const (
	boostRank = 2
	cutRank   = 5
)

// ErrAlreadySettled reports a second settlement attempt for the same race.
var ErrAlreadySettled = eris.New("learn: race already settled")

// Settlement reports what a settled result did to the stored prediction's
// venue profile.
type Settlement struct {
	Outcome model.Outcome
	Weights model.WeightSet
}

// Settler resolves official results against stored predictions.
type Settler struct {
	store store.Store
}

func New(st store.Store) *Settler {
	return &Settler{store: st}
}

// Settle records an official trifecta result for a previously predicted race,
// determines which bucket covered it, if any, and adjusts the venue weight
// profile. A race settles at most once.
func (s *Settler) Settle(ctx context.Context, raceKey, result string, payout int) (*Settlement, error) {
	actual, err := model.ParseTicket(result)
	if err != nil {
		return nil, err
	}

	pred, err := s.store.GetPrediction(ctx, raceKey)
	if err != nil {
		return nil, err
	}

	prior, err := s.store.ListOutcomes(ctx, store.OutcomeFilter{RaceKey: raceKey, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(prior) > 0 {
		return nil, eris.Wrapf(ErrAlreadySettled, "%s", raceKey)
	}

	outcome := model.Outcome{
		RaceKey:   raceKey,
		Result:    actual.String(),
		HitBucket: string(hitBucket(pred.Buckets, actual)),
		Payout:    payout,
	}
	if err := s.store.SaveOutcome(ctx, outcome); err != nil {
		return nil, err
	}

	weights := s.adjusted(ctx, pred, actual.First)
	if err := s.store.SaveWeights(ctx, pred.VenueID, weights); err != nil {
		return nil, err
	}

	zap.L().Info("result settled",
		zap.String("race_key", raceKey),
		zap.String("result", outcome.Result),
		zap.String("hit_bucket", outcome.HitBucket),
		zap.Int("payout", payout))

	return &Settlement{Outcome: outcome, Weights: weights}, nil
}

// hitBucket expands each bucket's grouped notation and reports the first
// bucket containing the actual result. Buckets are disjoint, so at most one
// matches; empty means a clean miss.
func hitBucket(buckets model.BucketNotation, actual model.Ticket) model.BucketName {
	for _, b := range []struct {
		name   model.BucketName
		slates []string
	}{
		{model.BucketPrimary, buckets.Primary},
		{model.BucketCover, buckets.Cover},
		{model.BucketLongshot, buckets.Longshot},
	} {
		for _, notation := range b.slates {
			tickets, err := ticket.Expand(notation)
			if err != nil {
				continue
			}
			for _, t := range tickets {
				if t == actual {
					return b.name
				}
			}
		}
	}
	return ""
}

// adjusted nudges the profile toward metrics that ranked the winning lane
// high and away from metrics that buried it, then renormalizes so the
// weights keep summing to one.
func (s *Settler) adjusted(ctx context.Context, pred *model.StoredPrediction, winner int) model.WeightSet {
	w := s.profile(ctx, pred.VenueID)
	for key := range w.Metrics {
		ranks := pred.MetricRanks[key]
		if winner < 1 || winner > len(ranks) {
			continue
		}
		switch r := ranks[winner-1]; {
		case r == 0:
			// metric was missing for the winner
		case r <= boostRank:
			w.Metrics[key] *= 1 + eta
		case r >= cutRank:
			w.Metrics[key] *= 1 - eta
		}
	}
	return normalize(w)
}

// profile loads the venue weight profile, falling back to the global profile
// and then the built-in defaults, so a venue starts adapting from whatever
// is closest to it.
func (s *Settler) profile(ctx context.Context, venueID int) model.WeightSet {
	for _, id := range []int{venueID, 0} {
		w, err := s.store.LoadWeights(ctx, id)
		if err == nil && len(w.Metrics) > 0 {
			return w.Clone()
		}
		if err != nil && !eris.Is(err, store.ErrNotFound) {
			zap.L().Warn("weight profile load failed, using defaults",
				zap.Int("venue_id", id), zap.Error(err))
			break
		}
	}
	return model.DefaultWeights()
}

// normalize scales the weights back to sum 1.0, rounded to four decimals.
func normalize(w model.WeightSet) model.WeightSet {
	var sum float64
	for _, v := range w.Metrics {
		sum += v
	}
	if sum <= 0 {
		return model.DefaultWeights()
	}
	for k, v := range w.Metrics {
		w.Metrics[k] = math.Round(v/sum*1e4) / 1e4
	}
	return w
}
