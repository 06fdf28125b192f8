// Package predictor runs the full pipeline for one race: fetch, locate,
// extract, score, generate, compose.
package predictor

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/uzuki-lab/kyotei-cli/internal/extract"
	"github.com/uzuki-lab/kyotei-cli/internal/fetch"
	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/narrative"
	"github.com/uzuki-lab/kyotei-cli/internal/score"
	"github.com/uzuki-lab/kyotei-cli/internal/store"
	"github.com/uzuki-lab/kyotei-cli/internal/ticket"
)

// Predictor wires the pipeline stages behind one entry point. Stages run
// strictly sequentially per request; the only state shared across requests
// lives inside the fetcher's cache.
type Predictor struct {
	fetcher   *fetch.Fetcher
	specs     []model.MetricSpec
	ticketCfg ticket.Config
	store     store.Store
}

// Options configure optional collaborators.
type Options struct {
	// Store, when set, persists predictions and supplies learned weight
	// profiles.
	Store store.Store
	// TicketConfig overrides the default slate shape.
	TicketConfig *ticket.Config
}

// New builds a Predictor over a fetcher.
func New(fetcher *fetch.Fetcher, opts Options) *Predictor {
	cfg := ticket.DefaultConfig()
	if opts.TicketConfig != nil {
		cfg = *opts.TicketConfig
	}
	return &Predictor{
		fetcher:   fetcher,
		specs:     model.DefaultMetricSpecs(),
		ticketCfg: cfg,
		store:     opts.Store,
	}
}

// Predict runs the pipeline for one race. The only user-visible failure is
// *fetch.NoDataAvailable; an extraction below quorum degrades the output
// instead of failing, scoring on the course prior plus whatever signals were
// recovered.
func (p *Predictor) Predict(ctx context.Context, q model.RaceQuery) (*model.Prediction, error) {
	res, err := p.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	doc := res.Document

	block, err := extract.Locate(doc.Body, labelSet(p.specs))
	if err != nil {
		return nil, eris.Wrapf(err, "predict: %s", q.Key())
	}

	metrics, err := extract.Extract(block, p.specs)
	if err != nil {
		var inc *extract.IncompleteError
		if !errors.As(err, &inc) {
			return nil, eris.Wrapf(err, "predict: %s", q.Key())
		}
		zap.L().Warn("extraction below quorum, scoring on partial signals",
			zap.String("race", q.Key()),
			zap.Int("found", inc.Found),
			zap.Int("expected", inc.Expected))
	}
	lanes := metrics[:]
	cond := extract.Conditions(doc.Body)

	breakdown := score.New(p.loadWeights(ctx, q.VenueID)).Evaluate(lanes, cond)
	ordered := ticket.Rank(breakdown.Scores)
	buckets := ticket.Generate(ordered, p.ticketCfg)
	notation := model.BucketNotation{
		Primary:  ticket.Notation(buckets.Primary),
		Cover:    ticket.Notation(buckets.Cover),
		Longshot: ticket.Notation(buckets.Longshot),
	}

	pred := &model.Prediction{
		Query:      q,
		Narrative:  narrative.Compose(ordered, lanes, cond, breakdown.Scores),
		Buckets:    notation,
		Confidence: ticket.Confidence(breakdown.Scores),
		SourceURL:  doc.URL,
		Diagnostic: model.Diagnostic{AttemptedURLs: res.Attempted},
	}

	p.persist(ctx, q, notation, ordered, breakdown)

	zap.L().Info("prediction composed",
		zap.String("race", q.Key()),
		zap.String("source", doc.SourceID),
		zap.String("confidence", pred.Confidence),
		zap.Int("tickets", len(buckets.All())))

	return pred, nil
}

// loadWeights prefers the venue profile, then the global profile, then the
// built-in defaults.
func (p *Predictor) loadWeights(ctx context.Context, venueID int) model.WeightSet {
	if p.store == nil {
		return model.DefaultWeights()
	}
	for _, id := range []int{venueID, 0} {
		w, err := p.store.LoadWeights(ctx, id)
		if err == nil {
			return w
		}
		if !eris.Is(err, store.ErrNotFound) {
			zap.L().Warn("weight profile load failed, falling back",
				zap.Int("venue", id),
				zap.Error(err))
		}
	}
	return model.DefaultWeights()
}

// persist saves the prediction for later settlement. A storage failure is
// logged, never surfaced; the prediction itself already succeeded.
func (p *Predictor) persist(ctx context.Context, q model.RaceQuery, notation model.BucketNotation, ordered []int, b score.Breakdown) {
	if p.store == nil {
		return
	}
	sp := model.StoredPrediction{
		RaceKey:     q.Key(),
		VenueID:     q.VenueID,
		RaceNumber:  q.RaceNumber,
		Date:        q.Date,
		Buckets:     notation,
		Ordered:     ordered,
		MetricRanks: laneRanks(b.MetricRanks),
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.SavePrediction(ctx, sp); err != nil {
		zap.L().Warn("prediction save failed",
			zap.String("race", q.Key()),
			zap.Error(err))
	}
}

// laneRanks converts best-first lane lists into per-lane rank rows, index 0
// = lane 1, 0 = metric missing for that lane.
func laneRanks(order map[string][]int) map[string][]int {
	out := make(map[string][]int, len(order))
	for key, lanes := range order {
		ranks := make([]int, model.NumLanes)
		for i, lane := range lanes {
			if lane >= 1 && lane <= model.NumLanes {
				ranks[lane-1] = i + 1
			}
		}
		out[key] = ranks
	}
	return out
}

func labelSet(specs []model.MetricSpec) []string {
	var labels []string
	for _, s := range specs {
		labels = append(labels, s.Labels...)
	}
	return labels
}
