package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/normalize"
)

// DefaultQuorum is the minimum count of distinct metrics a block must yield
// before extraction counts as complete.
const DefaultQuorum = 2

// tokenRe matches one lane value in folded text: an optional circled lane
// marker, an optional flagged-start prefix, then the number.
var tokenRe = regexp.MustCompile(`[①②③④⑤⑥]?[FL]?\.?\d+(?:\.\d+)?`)

// laneCellRe matches an explicit "N号艇" lane marker at the start of a cell.
var laneCellRe = regexp.MustCompile(`^([1-6])号艇`)

// IncompleteError reports a located block that yielded fewer metrics than
// the quorum. The partial metrics are still usable; scoring proceeds on the
// positional prior plus whatever was recovered.
type IncompleteError struct {
	Found    int
	Expected int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("extract: only %d of %d quorum metrics recovered", e.Found, e.Expected)
}

// Extract maps a located block into six per-lane metric sets. Missing cells
// stay nil. An explicit lane marker on a value always overrides positional
// assignment.
func Extract(block *Block, specs []model.MetricSpec) ([model.NumLanes]model.LaneMetrics, error) {
	var metrics [model.NumLanes]model.LaneMetrics
	for i := range metrics {
		metrics[i].Lane = i + 1
	}

	var found int
	switch block.Layout {
	case LayoutTabular:
		found = extractTable(block.Rows, specs, &metrics)
	case LayoutFreeText:
		found = extractFreeText(block.Text, specs, &metrics)
	}

	if found < DefaultQuorum {
		return metrics, &IncompleteError{Found: found, Expected: DefaultQuorum}
	}
	return metrics, nil
}

// extractTable assigns each table row to at most one metric spec, picking
// the most specific matching label per row, then reads the six cells after
// the label cell.
func extractTable(rows [][]string, specs []model.MetricSpec, metrics *[model.NumLanes]model.LaneMetrics) int {
	taken := make(map[string]bool, len(specs))
	found := 0

	for _, row := range rows {
		labelIdx := firstNonEmpty(row)
		if labelIdx < 0 {
			continue
		}
		labelCell := row[labelIdx]

		if strings.Contains(labelCell, "級別") {
			assignClassTiers(row[labelIdx+1:], metrics)
			continue
		}

		spec, ok := bestSpec(labelCell, specs, taken)
		if !ok {
			continue
		}
		taken[spec.Key] = true

		if assignRow(row[labelIdx+1:], spec, metrics) {
			found++
		}
	}
	return found
}

// bestSpec returns the unclaimed spec whose longest label matches the cell.
// Longer labels win so an "ST順位" row never lands on the plain "ST" spec.
func bestSpec(cell string, specs []model.MetricSpec, taken map[string]bool) (model.MetricSpec, bool) {
	var (
		best    model.MetricSpec
		bestLen = 0
	)
	for _, spec := range specs {
		if taken[spec.Key] {
			continue
		}
		for _, label := range spec.Labels {
			l := normalize.Fold(label)
			if strings.Contains(cell, l) && len(l) > bestLen {
				best, bestLen = spec, len(l)
			}
		}
	}
	return best, bestLen > 0
}

// assignRow writes up to six cell values into the metrics array and reports
// whether at least one lane received a value.
func assignRow(cells []string, spec model.MetricSpec, metrics *[model.NumLanes]model.LaneMetrics) bool {
	var claimed [model.NumLanes + 1]bool
	type pending struct {
		lane int
		raw  string
	}
	var values []pending

	// Marker pass first: explicit lane numbers claim their lanes.
	positional := make([]string, 0, model.NumLanes)
	for _, cell := range cells {
		if len(values)+len(positional) == model.NumLanes {
			break
		}
		if lane, rest, ok := laneMarker(cell); ok {
			claimed[lane] = true
			values = append(values, pending{lane: lane, raw: rest})
			continue
		}
		positional = append(positional, cell)
	}

	// Positional pass fills the lanes markers left unclaimed, in order.
	next := 1
	for _, cell := range positional {
		for next <= model.NumLanes && claimed[next] {
			next++
		}
		if next > model.NumLanes {
			break
		}
		values = append(values, pending{lane: next, raw: cell})
		next++
	}

	any := false
	for _, p := range values {
		v := normalize.Number(p.raw)
		if v == nil {
			continue
		}
		m := &metrics[p.lane-1]
		m.SetMetric(spec.Key, v)
		if spec.Key == model.MetricST && normalize.Flagged(p.raw) {
			m.STFlagged = true
		}
		any = true
	}
	return any
}

// extractFreeText reads the first six value tokens after each label match.
func extractFreeText(text string, specs []model.MetricSpec, metrics *[model.NumLanes]model.LaneMetrics) int {
	allLabels := make([]string, 0, len(specs)*2)
	for _, spec := range specs {
		allLabels = append(allLabels, spec.Labels...)
	}

	found := 0
	for _, spec := range specs {
		idx, matched := -1, ""
		for _, label := range spec.Labels {
			l := normalize.Fold(label)
			if i := findLabel(text, l, allLabels); i >= 0 && (idx < 0 || i < idx) {
				idx, matched = i, l
			}
		}
		if idx < 0 {
			continue
		}

		window := runeWindow(text[idx+len(matched):], freeTextWindow)
		tokens := tokenRe.FindAllString(window, model.NumLanes)

		any := false
		var claimed [model.NumLanes + 1]bool
		next := 1
		for _, tok := range tokens {
			lane, raw, hasMarker := circledLane(tok)
			if !hasMarker {
				for next <= model.NumLanes && claimed[next] {
					next++
				}
				if next > model.NumLanes {
					break
				}
				lane, raw = next, tok
				next++
			} else {
				claimed[lane] = true
			}

			v := normalize.Number(raw)
			if v == nil {
				continue
			}
			m := &metrics[lane-1]
			m.SetMetric(spec.Key, v)
			if spec.Key == model.MetricST && normalize.Flagged(raw) {
				m.STFlagged = true
			}
			any = true
		}
		if any {
			found++
		}
	}
	return found
}

// laneMarker recognizes circled digits and "N号艇" prefixes on a cell.
func laneMarker(cell string) (int, string, bool) {
	if lane, rest, ok := circledLane(cell); ok {
		return lane, rest, true
	}
	if m := laneCellRe.FindStringSubmatch(cell); m != nil {
		lane := int(m[1][0] - '0')
		return lane, strings.TrimPrefix(cell, m[0]), true
	}
	return 0, cell, false
}

var circled = []string{"①", "②", "③", "④", "⑤", "⑥"}

func circledLane(s string) (int, string, bool) {
	for i, c := range circled {
		if strings.HasPrefix(s, c) {
			return i + 1, strings.TrimPrefix(s, c), true
		}
	}
	return 0, s, false
}

func assignClassTiers(cells []string, metrics *[model.NumLanes]model.LaneMetrics) {
	for i, cell := range cells {
		if i >= model.NumLanes {
			break
		}
		tier := strings.TrimSpace(cell)
		if tier != "" {
			metrics[i].ClassTier = tier
		}
	}
}

func firstNonEmpty(row []string) int {
	for i, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return i
		}
	}
	return -1
}
