// Package score turns per-lane metrics into composite competitor scores.
//
// Each weighted metric ranks the six lanes and pays out points by rank; a
// fixed course prior and bounded contextual adjustments are added on top.
// Scoring is pure: no I/O, no shared state, same inputs same outputs.
package score

import (
	"math"
	"sort"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// coursePrior is the structural advantage of each starting lane, taken from
// long-run first-place distributions. Lane 1 wins roughly a third of races
// before any observed signal is considered.
var coursePrior = map[int]float64{
	1: 0.33,
	2: 0.19,
	3: 0.17,
	4: 0.14,
	5: 0.10,
	6: 0.07,
}

const (
	// rankScale converts weighted rank points into score points. A lane
	// ranked first on every weighted metric earns 6 * rankScale.
	rankScale = 10.0
	// priorScale converts the course prior into score points.
	priorScale = 40.0
	// adjustCap bounds each contextual adjustment.
	adjustCap = 3.0
	// strongWind is the speed (m/s) from which wind direction starts to
	// decide the first turn.
	strongWind = 4.0
	// strongTilt is the tilt angle from which an outer lane reads as a
	// first-turn attack setup.
	strongTilt = 0.5
)

// Scorer computes composite lane scores under a metric weight profile.
type Scorer struct {
	specs []model.MetricSpec
}

// New builds a Scorer. Weights override the matching default spec weights, so
// a learned per-venue profile slots in without touching label or direction
// configuration.
func New(weights model.WeightSet) *Scorer {
	specs := model.DefaultMetricSpecs()
	for i := range specs {
		if w, ok := weights.Metrics[specs[i].Key]; ok {
			specs[i].Weight = w
		}
	}
	return &Scorer{specs: specs}
}

// Breakdown is a scoring result together with the per-metric lane rankings
// that produced it.
type Breakdown struct {
	// Scores holds one entry per lane, in lane order.
	Scores []model.CompetitorScore
	// MetricRanks maps each weighted metric key to lanes best-first. Lanes
	// missing the value are absent.
	MetricRanks map[string][]int
}

// Score computes the six lane scores in lane order.
func (s *Scorer) Score(metrics []model.LaneMetrics, cond model.RaceConditions) []model.CompetitorScore {
	return s.Evaluate(metrics, cond).Scores
}

// Evaluate scores all six lanes and reports how each weighted metric ranked
// them. A lane missing a metric's value earns nothing for that metric only;
// an all-nil request still yields six distinct scores ordered purely by the
// course prior.
func (s *Scorer) Evaluate(metrics []model.LaneMetrics, cond model.RaceConditions) Breakdown {
	byLane := lanesByNumber(metrics)

	ranks := make(map[string][]int)
	components := make([]map[string]float64, model.NumLanes)
	for i := range components {
		components[i] = make(map[string]float64)
	}

	for _, spec := range s.specs {
		if spec.Weight <= 0 {
			continue
		}
		order := rankMetric(byLane, spec)
		if len(order) == 0 {
			continue
		}
		ranks[spec.Key] = order
		for i, lane := range order {
			rank := i + 1
			components[lane-1][spec.Key] = float64(model.NumLanes+1-rank) * spec.Weight * rankScale
		}
	}

	scores := make([]model.CompetitorScore, 0, model.NumLanes)
	for lane := 1; lane <= model.NumLanes; lane++ {
		comp := components[lane-1]
		comp["prior"] = round2(coursePrior[lane] * priorScale)
		if adj := windAdjust(lane, cond); adj != 0 {
			comp["wind"] = adj
		}
		if adj := tiltAdjust(byLane[lane]); adj != 0 {
			comp["tilt"] = adj
		}

		var total float64
		for _, v := range comp {
			total += v
		}
		total = math.Max(0, math.Min(100, total))

		scores = append(scores, model.CompetitorScore{
			Lane:       lane,
			Score:      round2(total),
			Components: comp,
		})
	}

	return Breakdown{Scores: scores, MetricRanks: ranks}
}

type rankedValue struct {
	lane    int
	value   float64
	flagged bool
}

// rankMetric orders lanes best-first for one metric. Lanes without a value
// are left out. For start timing, a flagged lane sorts behind every clean
// one regardless of how sharp the number looks.
func rankMetric(byLane map[int]*model.LaneMetrics, spec model.MetricSpec) []int {
	vals := make([]rankedValue, 0, model.NumLanes)
	for lane := 1; lane <= model.NumLanes; lane++ {
		m, ok := byLane[lane]
		if !ok {
			continue
		}
		v := m.Metric(spec.Key)
		if v == nil {
			continue
		}
		vals = append(vals, rankedValue{
			lane:    lane,
			value:   *v,
			flagged: spec.Key == model.MetricST && m.STFlagged,
		})
	}

	sort.SliceStable(vals, func(i, j int) bool {
		if vals[i].flagged != vals[j].flagged {
			return !vals[i].flagged
		}
		if vals[i].value != vals[j].value {
			if spec.Direction == model.Descending {
				return vals[i].value > vals[j].value
			}
			return vals[i].value < vals[j].value
		}
		return vals[i].lane < vals[j].lane
	})

	order := make([]int, len(vals))
	for i, rv := range vals {
		order[i] = rv.lane
	}
	return order
}

// windAdjust shifts the balance between the inside runner and the outer dash
// lanes once wind is strong enough to disturb the first turn. Tailwind
// carries the dash lanes into the mark; headwind lets the inside pivot hold.
func windAdjust(lane int, cond model.RaceConditions) float64 {
	if cond.WindSpeed == nil || *cond.WindSpeed < strongWind {
		return 0
	}
	mag := math.Min(adjustCap, *cond.WindSpeed-strongWind+1)

	switch cond.WindDirection {
	case "追い風":
		switch {
		case lane >= 4:
			return mag
		case lane == 1:
			return -mag
		}
	case "向かい風":
		switch {
		case lane <= 2:
			return mag
		case lane >= 4:
			return -mag
		}
	}
	return 0
}

// tiltAdjust rewards an outer lane that raised its tilt, a setup trading the
// start for straight-line speed at the first turn. Inner lanes gain nothing
// from tilt because their line is decided by the pivot.
func tiltAdjust(m *model.LaneMetrics) float64 {
	if m == nil || m.TiltAngle == nil || m.Lane < 4 {
		return 0
	}
	if *m.TiltAngle < strongTilt {
		return 0
	}
	return math.Min(adjustCap, *m.TiltAngle*2)
}

func lanesByNumber(metrics []model.LaneMetrics) map[int]*model.LaneMetrics {
	byLane := make(map[int]*model.LaneMetrics, len(metrics))
	for i := range metrics {
		if l := metrics[i].Lane; l >= 1 && l <= model.NumLanes {
			byLane[l] = &metrics[i]
		}
	}
	return byLane
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
