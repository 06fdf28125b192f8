// Package ticket ranks scored lanes and generates the trifecta slate, split
// into primary, cover and longshot buckets with formation-notation
// compression on top.
package ticket

import (
	"sort"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// Config bounds each bucket. Windows index into the ranked lane order, not
// physical lane numbers.
type Config struct {
	// PrimaryWindow is how many next-best lanes fill the primary second and
	// third slots.
	PrimaryWindow int `json:"primary_window" mapstructure:"primary_window"`
	PrimaryMax    int `json:"primary_max" mapstructure:"primary_max"`
	// CoverWindow is how many next-best lanes may take the cover first slot.
	CoverWindow int `json:"cover_window" mapstructure:"cover_window"`
	CoverMax    int `json:"cover_max" mapstructure:"cover_max"`
	// LongshotWindow is how many tail-ranked lanes may take the longshot
	// first slot.
	LongshotWindow int `json:"longshot_window" mapstructure:"longshot_window"`
	LongshotMax    int `json:"longshot_max" mapstructure:"longshot_max"`
}

// DefaultConfig returns the standard twelve-ticket slate shape.
func DefaultConfig() Config {
	return Config{
		PrimaryWindow:  3,
		PrimaryMax:     6,
		CoverWindow:    2,
		CoverMax:       4,
		LongshotWindow: 2,
		LongshotMax:    2,
	}
}

// Rank orders lanes by descending score. Equal scores fall back to the lower
// lane number.
func Rank(scores []model.CompetitorScore) []int {
	sorted := make([]model.CompetitorScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Lane < sorted[j].Lane
	})

	lanes := make([]int, len(sorted))
	for i, cs := range sorted {
		lanes[i] = cs.Lane
	}
	return lanes
}

// Generate builds the bucketed slate from ranked lanes. A ticket present in
// an earlier bucket never reappears in a later one; each bucket is cut to
// its max after that dedup, so a duplicate never costs a slot.
func Generate(ordered []int, cfg Config) model.Buckets {
	seen := make(map[model.Ticket]struct{})
	return model.Buckets{
		Primary:  take(primaryTickets(ordered, cfg), seen, cfg.PrimaryMax),
		Cover:    take(coverTickets(ordered, cfg), seen, cfg.CoverMax),
		Longshot: take(longshotTickets(ordered, cfg), seen, cfg.LongshotMax),
	}
}

// Confidence grades a scored race by the gap between its top two lanes.
func Confidence(scores []model.CompetitorScore) string {
	if len(scores) < 2 {
		return "C"
	}
	vals := make([]float64, len(scores))
	for i, cs := range scores {
		vals[i] = cs.Score
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))

	switch spread := vals[0] - vals[1]; {
	case spread >= 8:
		return "A"
	case spread >= 4:
		return "B"
	default:
		return "C"
	}
}

// primaryTickets fixes the top lane first and permutes the next-best window
// through the remaining slots.
func primaryTickets(ordered []int, cfg Config) []model.Ticket {
	if len(ordered) == 0 {
		return nil
	}
	return permute(ordered[0], window(ordered, 1, cfg.PrimaryWindow))
}

// coverTickets let a next-best lane take the win with the top lane reused in
// the trailing slots. Candidates interleave across firsts so truncation does
// not starve the later first.
func coverTickets(ordered []int, cfg Config) []model.Ticket {
	if len(ordered) < 2 {
		return nil
	}
	top := ordered[0]

	var perFirst [][]model.Ticket
	for _, f := range window(ordered, 1, cfg.CoverWindow) {
		rest := []int{top}
		for _, l := range window(ordered, 1, cfg.PrimaryWindow) {
			if l != f {
				rest = append(rest, l)
			}
		}
		perFirst = append(perFirst, permute(f, rest))
	}
	return interleave(perFirst)
}

// longshotTickets hedge an upset: a tail-ranked lane takes the win with the
// top two lanes filling the board behind it.
func longshotTickets(ordered []int, cfg Config) []model.Ticket {
	if len(ordered) < 3 || cfg.LongshotWindow <= 0 {
		return nil
	}
	start := len(ordered) - cfg.LongshotWindow
	if start < 3 {
		start = 3
	}

	var perFirst [][]model.Ticket
	for _, f := range ordered[start:] {
		perFirst = append(perFirst, permute(f, []int{ordered[0], ordered[1]}))
	}
	return interleave(perFirst)
}

// permute emits first-s-t for every ordered pair drawn from the window, best
// ranks first.
func permute(first int, lanes []int) []model.Ticket {
	var out []model.Ticket
	for _, s := range lanes {
		for _, t := range lanes {
			if t == s {
				continue
			}
			tk, err := model.NewTicket(first, s, t)
			if err != nil {
				continue
			}
			out = append(out, tk)
		}
	}
	return out
}

// take drops tickets already claimed by an earlier bucket, truncates to max,
// then claims what survived.
func take(candidates []model.Ticket, seen map[model.Ticket]struct{}, max int) []model.Ticket {
	var out []model.Ticket
	for _, tk := range candidates {
		if _, dup := seen[tk]; dup {
			continue
		}
		dup := false
		for _, kept := range out {
			if kept == tk {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, tk)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	for _, tk := range out {
		seen[tk] = struct{}{}
	}
	return out
}

func window(ordered []int, start, size int) []int {
	if start >= len(ordered) || size <= 0 {
		return nil
	}
	end := start + size
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[start:end]
}

func interleave(lists [][]model.Ticket) []model.Ticket {
	var out []model.Ticket
	for i := 0; ; i++ {
		advanced := false
		for _, l := range lists {
			if i < len(l) {
				out = append(out, l[i])
				advanced = true
			}
		}
		if !advanced {
			return out
		}
	}
}
