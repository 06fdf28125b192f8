package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }

func emptyLanes() []model.LaneMetrics {
	lanes := make([]model.LaneMetrics, model.NumLanes)
	for i := range lanes {
		lanes[i].Lane = i + 1
	}
	return lanes
}

func TestEvaluate_AllNilUsesPriorOnly(t *testing.T) {
	b := New(model.DefaultWeights()).Evaluate(emptyLanes(), model.RaceConditions{})
	require.Len(t, b.Scores, 6)

	for i, cs := range b.Scores {
		assert.Equal(t, i+1, cs.Lane)
		assert.Len(t, cs.Components, 1, "only the prior should contribute")
		if i > 0 {
			assert.Greater(t, b.Scores[i-1].Score, cs.Score,
				"lane %d must outscore lane %d on prior alone", i, i+1)
		}
	}
	assert.Empty(t, b.MetricRanks)
}

func TestEvaluate_RankPointsByPosition(t *testing.T) {
	lanes := emptyLanes()
	times := map[int]float64{1: 6.80, 2: 6.90, 3: 6.72, 4: 6.95, 5: 7.00, 6: 7.10}
	for i := range lanes {
		lanes[i].ExhibitionTime = ptrFloat64(times[lanes[i].Lane])
	}

	b := New(model.DefaultWeights()).Evaluate(lanes, model.RaceConditions{})

	require.Equal(t, []int{3, 1, 2, 4, 5, 6}, b.MetricRanks[model.MetricExhibition])
	assert.InDelta(t, 18.0, b.Scores[2].Components[model.MetricExhibition], 1e-9, "rank 1 pays 6 * 0.30 * 10")
	assert.InDelta(t, 15.0, b.Scores[0].Components[model.MetricExhibition], 1e-9, "rank 2 pays 5 * 0.30 * 10")
	assert.InDelta(t, 3.0, b.Scores[5].Components[model.MetricExhibition], 1e-9, "rank 6 pays 1 * 0.30 * 10")

	for _, cs := range b.Scores {
		var sum float64
		for _, v := range cs.Components {
			sum += v
		}
		assert.InDelta(t, sum, cs.Score, 0.01, "lane %d score must equal its component sum", cs.Lane)
	}
}

func TestEvaluate_MissingValueEarnsNothing(t *testing.T) {
	lanes := emptyLanes()
	lanes[0].ExhibitionTime = ptrFloat64(6.80)
	lanes[2].ExhibitionTime = ptrFloat64(6.75)

	b := New(model.DefaultWeights()).Evaluate(lanes, model.RaceConditions{})

	require.Equal(t, []int{3, 1}, b.MetricRanks[model.MetricExhibition])
	assert.NotContains(t, b.Scores[1].Components, model.MetricExhibition)
	assert.InDelta(t, 18.0, b.Scores[2].Components[model.MetricExhibition], 1e-9,
		"rank 1 pays full points even when other lanes are missing")
}

func TestEvaluate_FlaggedStartRanksLast(t *testing.T) {
	lanes := emptyLanes()
	lanes[0].StartTiming = ptrFloat64(0.01)
	lanes[0].STFlagged = true
	lanes[1].StartTiming = ptrFloat64(0.25)
	lanes[2].StartTiming = ptrFloat64(0.15)

	b := New(model.DefaultWeights()).Evaluate(lanes, model.RaceConditions{})

	assert.Equal(t, []int{3, 2, 1}, b.MetricRanks[model.MetricST],
		"a flagged start sorts behind every clean one")
}

func TestEvaluate_TieBreaksByLowerLane(t *testing.T) {
	lanes := emptyLanes()
	lanes[0].ExhibitionTime = ptrFloat64(6.80)
	lanes[1].ExhibitionTime = ptrFloat64(6.80)
	lanes[2].ExhibitionTime = ptrFloat64(6.90)

	b := New(model.DefaultWeights()).Evaluate(lanes, model.RaceConditions{})
	assert.Equal(t, []int{1, 2, 3}, b.MetricRanks[model.MetricExhibition])
}

func TestEvaluate_WindAdjust(t *testing.T) {
	tests := []struct {
		name string
		cond model.RaceConditions
		want map[int]float64
	}{
		{
			name: "strong tailwind lifts the dash lanes",
			cond: model.RaceConditions{WindDirection: "追い風", WindSpeed: ptrFloat64(6)},
			want: map[int]float64{1: -3, 4: 3, 5: 3, 6: 3},
		},
		{
			name: "strong headwind holds the inside",
			cond: model.RaceConditions{WindDirection: "向かい風", WindSpeed: ptrFloat64(5)},
			want: map[int]float64{1: 2, 2: 2, 4: -2, 5: -2, 6: -2},
		},
		{
			name: "light wind changes nothing",
			cond: model.RaceConditions{WindDirection: "追い風", WindSpeed: ptrFloat64(2)},
			want: map[int]float64{},
		},
		{
			name: "unknown speed changes nothing",
			cond: model.RaceConditions{WindDirection: "追い風"},
			want: map[int]float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(model.DefaultWeights()).Evaluate(emptyLanes(), tt.cond)
			for _, cs := range b.Scores {
				want, ok := tt.want[cs.Lane]
				if !ok {
					assert.NotContains(t, cs.Components, "wind", "lane %d", cs.Lane)
					continue
				}
				assert.InDelta(t, want, cs.Components["wind"], 1e-9, "lane %d", cs.Lane)
			}
		})
	}
}

func TestEvaluate_TiltBoost(t *testing.T) {
	lanes := emptyLanes()
	lanes[0].TiltAngle = ptrFloat64(1.0)
	lanes[3].TiltAngle = ptrFloat64(0.3)
	lanes[4].TiltAngle = ptrFloat64(1.0)
	lanes[5].TiltAngle = ptrFloat64(2.5)

	b := New(model.DefaultWeights()).Evaluate(lanes, model.RaceConditions{})

	assert.NotContains(t, b.Scores[0].Components, "tilt", "inner lanes gain nothing from tilt")
	assert.NotContains(t, b.Scores[3].Components, "tilt", "tilt below the attack threshold")
	assert.InDelta(t, 2.0, b.Scores[4].Components["tilt"], 1e-9)
	assert.InDelta(t, 3.0, b.Scores[5].Components["tilt"], 1e-9, "tilt boost is capped")
}

func TestNew_WeightOverride(t *testing.T) {
	lanes := emptyLanes()
	lanes[0].ExhibitionTime = ptrFloat64(6.70)
	lanes[1].ExhibitionTime = ptrFloat64(6.90)

	weights := model.WeightSet{Metrics: map[string]float64{model.MetricExhibition: 0.5}}
	b := New(weights).Evaluate(lanes, model.RaceConditions{})

	assert.InDelta(t, 30.0, b.Scores[0].Components[model.MetricExhibition], 1e-9,
		"overridden weight drives the payout")
}
