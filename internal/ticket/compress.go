package ticket

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// Group is a rectangle of tickets sharing a first lane: every listed second
// pairs with every listed third. Rendered as formation notation, "3-12-45".
type Group struct {
	First   int   `json:"first"`
	Seconds []int `json:"seconds"`
	Thirds  []int `json:"thirds"`
}

// String renders the group in formation notation with lane digits
// concatenated per slot.
func (g Group) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(g.First))
	b.WriteByte('-')
	for _, s := range g.Seconds {
		b.WriteString(strconv.Itoa(s))
	}
	b.WriteByte('-')
	for _, t := range g.Thirds {
		b.WriteString(strconv.Itoa(t))
	}
	return b.String()
}

// Tickets expands the rectangle back into concrete tickets.
func (g Group) Tickets() []model.Ticket {
	var out []model.Ticket
	for _, s := range g.Seconds {
		for _, t := range g.Thirds {
			tk, err := model.NewTicket(g.First, s, t)
			if err != nil {
				continue
			}
			out = append(out, tk)
		}
	}
	return out
}

// Compress folds a ticket set into formation groups. Tickets are bucketed by
// first lane; seconds whose third sets match exactly merge into one group,
// everything else stays a singleton. Expanding every group reproduces the
// input set exactly.
func Compress(tickets []model.Ticket) []Group {
	var firsts []int
	thirdsBySecond := make(map[int]map[int][]int)
	secondOrder := make(map[int][]int)

	for _, tk := range tickets {
		bySecond, ok := thirdsBySecond[tk.First]
		if !ok {
			bySecond = make(map[int][]int)
			thirdsBySecond[tk.First] = bySecond
			firsts = append(firsts, tk.First)
		}
		if _, ok := bySecond[tk.Second]; !ok {
			secondOrder[tk.First] = append(secondOrder[tk.First], tk.Second)
		}
		bySecond[tk.Second] = appendLane(bySecond[tk.Second], tk.Third)
	}

	var groups []Group
	for _, first := range firsts {
		bySecond := thirdsBySecond[first]

		grouped := make(map[string][]int)
		var sigOrder []string
		for _, second := range secondOrder[first] {
			thirds := append([]int(nil), bySecond[second]...)
			sort.Ints(thirds)
			sig := laneDigits(thirds)
			if _, ok := grouped[sig]; !ok {
				sigOrder = append(sigOrder, sig)
			}
			grouped[sig] = append(grouped[sig], second)
		}

		for _, sig := range sigOrder {
			seconds := grouped[sig]
			sort.Ints(seconds)
			thirds := append([]int(nil), bySecond[seconds[0]]...)
			sort.Ints(thirds)
			groups = append(groups, Group{First: first, Seconds: seconds, Thirds: thirds})
		}
	}
	return groups
}

// Notation compresses a ticket set straight to its notation strings.
func Notation(tickets []model.Ticket) []string {
	groups := Compress(tickets)
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.String()
	}
	return out
}

// Expand parses formation notation back into distinct tickets. Multi-digit
// slots expand combinatorially; triples that would repeat a lane are skipped,
// matching how formations are read on a betting slip.
func Expand(notation string) ([]model.Ticket, error) {
	parts := strings.Split(strings.TrimSpace(notation), "-")
	if len(parts) != 3 {
		return nil, eris.Errorf("ticket: notation %q needs three slots", notation)
	}

	firsts, err := parseLanes(parts[0])
	if err != nil {
		return nil, err
	}
	seconds, err := parseLanes(parts[1])
	if err != nil {
		return nil, err
	}
	thirds, err := parseLanes(parts[2])
	if err != nil {
		return nil, err
	}

	seen := make(map[model.Ticket]struct{})
	var out []model.Ticket
	for _, f := range firsts {
		for _, s := range seconds {
			for _, t := range thirds {
				tk, err := model.NewTicket(f, s, t)
				if err != nil {
					continue
				}
				if _, dup := seen[tk]; dup {
					continue
				}
				seen[tk] = struct{}{}
				out = append(out, tk)
			}
		}
	}
	if len(out) == 0 {
		return nil, eris.Errorf("ticket: notation %q expands to nothing", notation)
	}
	return out, nil
}

func parseLanes(segment string) ([]int, error) {
	if segment == "" {
		return nil, eris.New("ticket: empty notation slot")
	}
	lanes := make([]int, 0, len(segment))
	for _, r := range segment {
		if r < '1' || r > '6' {
			return nil, eris.Errorf("ticket: lane %q out of range 1-6", string(r))
		}
		lanes = append(lanes, int(r-'0'))
	}
	return lanes, nil
}

func appendLane(lanes []int, lane int) []int {
	for _, l := range lanes {
		if l == lane {
			return lanes
		}
	}
	return append(lanes, lane)
}

func laneDigits(lanes []int) string {
	var b strings.Builder
	for _, l := range lanes {
		b.WriteString(strconv.Itoa(l))
	}
	return b.String()
}
