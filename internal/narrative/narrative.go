// Package narrative renders a short Japanese race reading from the ranked
// lanes and the metrics behind them.
package narrative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/normalize"
)

// maxFacts caps how many supporting observations follow the scenario line.
const maxFacts = 3

// notableWind is the speed (m/s) from which the wind earns a mention.
const notableWind = 4.0

// Compose picks a scenario for the leading lane, backs it with up to three
// supporting facts and names the closest rivals. When the leader has no
// usable metrics the output falls back to a generic positional statement.
func Compose(ordered []int, metrics []model.LaneMetrics, cond model.RaceConditions, scores []model.CompetitorScore) string {
	if len(ordered) == 0 {
		return "出走情報が不足しているため予想を組み立てられません。"
	}
	leader := ordered[0]

	facts := leaderFacts(leader, metrics)
	if len(facts) == 0 {
		return fmt.Sprintf("%d号艇を軸に上位評価。直前情報が薄いため展示気配の確認を。", leader)
	}
	if w := windFact(cond); w != "" && len(facts) < maxFacts {
		facts = append(facts, w)
	}
	if len(facts) < maxFacts && scoreSpread(scores, leader) >= 8 {
		facts = append(facts, "総合評価も頭ひとつ抜けている")
	}

	var b strings.Builder
	b.WriteString(scenarioLine(leader, metrics))
	b.WriteString(strings.Join(facts, "、"))
	b.WriteString("。")
	if len(ordered) >= 3 {
		b.WriteString(fmt.Sprintf("相手筆頭は%d号艇、続いて%d号艇。", ordered[1], ordered[2]))
	}
	return b.String()
}

// scenarioLine maps the leading lane to a race shape. Lane 1 escapes, lane 2
// cuts inside, everyone else sweeps from the outside. The cautious variants
// fire when the leader's start or exhibition rank does not back the shape.
func scenarioLine(leader int, metrics []model.LaneMetrics) string {
	switch {
	case leader == 1:
		if r := rankOf(metrics, leader, model.MetricST, model.Ascending); r == 0 || r <= 3 {
			return "1号艇のイン逃げが本線。"
		}
		return "1号艇の逃げ本線もスタート気配は平凡で油断禁物。"
	case leader == 2:
		return "2号艇の差しが本線。"
	case leader == 3:
		if rankOf(metrics, leader, model.MetricExhibition, model.Ascending) <= 2 {
			return "3号艇のまくり差しが本線。"
		}
		return "3号艇が中心もまくり差しは展示次第。"
	default:
		if rankOf(metrics, leader, model.MetricExhibition, model.Ascending) <= 2 {
			return fmt.Sprintf("%d号艇のまくりが本線。", leader)
		}
		return fmt.Sprintf("%d号艇の一撃まくりに期待。", leader)
	}
}

// leaderFacts collects supporting observations about the leading lane in a
// fixed priority order, capped at maxFacts.
func leaderFacts(leader int, metrics []model.LaneMetrics) []string {
	m := laneMetrics(metrics, leader)
	if m == nil {
		return nil
	}

	type candidate struct {
		key   string
		value *float64
		top   string
		good  string
	}
	candidates := []candidate{
		{model.MetricExhibition, m.ExhibitionTime, "展示タイム最速", "展示タイム上位"},
		{model.MetricST, m.Metric(model.MetricST), "ST最速", "ST上位"},
		{model.MetricTurn, m.TurnSpeed, "周り足トップ", "周り足上位"},
		{model.MetricLap, m.LapTime, "周回トップ", "周回上位"},
		{model.MetricStraight, m.StraightSpeed, "直線トップ", "直線上位"},
	}

	var facts []string
	for _, c := range candidates {
		if len(facts) == maxFacts {
			break
		}
		if c.value == nil {
			continue
		}
		switch r := rankOf(metrics, leader, c.key, model.Ascending); {
		case r == 1:
			facts = append(facts, fmt.Sprintf("%s(%s)", c.top, normalize.Format(*c.value)))
		case r == 2:
			facts = append(facts, c.good)
		}
	}

	if m.STFlagged && len(facts) < maxFacts {
		facts = append(facts, "展示でフライングがありスタートは慎重か")
	}
	return facts
}

// windFact describes the wind when it is strong enough to move the race.
func windFact(cond model.RaceConditions) string {
	if cond.WindSpeed == nil || *cond.WindSpeed < notableWind {
		return ""
	}
	speed := normalize.Format(*cond.WindSpeed)
	if cond.WindDirection != "" {
		return fmt.Sprintf("%s%smで展開が動きそう", cond.WindDirection, speed)
	}
	return fmt.Sprintf("風速%smで水面は荒れ気味", speed)
}

// rankOf returns the 1-based rank of a lane on one metric, 0 when the lane
// has no value for it.
func rankOf(metrics []model.LaneMetrics, lane int, key string, dir model.Direction) int {
	type entry struct {
		lane  int
		value float64
	}
	var entries []entry
	for i := range metrics {
		if v := metrics[i].Metric(key); v != nil {
			entries = append(entries, entry{lane: metrics[i].Lane, value: *v})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].value != entries[j].value {
			if dir == model.Descending {
				return entries[i].value > entries[j].value
			}
			return entries[i].value < entries[j].value
		}
		return entries[i].lane < entries[j].lane
	})

	for i, e := range entries {
		if e.lane == lane {
			return i + 1
		}
	}
	return 0
}

// scoreSpread is the leader's composite margin over the best of the rest.
func scoreSpread(scores []model.CompetitorScore, leader int) float64 {
	var lead, best float64
	for _, cs := range scores {
		if cs.Lane == leader {
			lead = cs.Score
			continue
		}
		if cs.Score > best {
			best = cs.Score
		}
	}
	if lead == 0 {
		return 0
	}
	return lead - best
}

func laneMetrics(metrics []model.LaneMetrics, lane int) *model.LaneMetrics {
	for i := range metrics {
		if metrics[i].Lane == lane {
			return &metrics[i]
		}
	}
	return nil
}
