package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Ticket is a fully ordered trifecta prediction: first, second and third
// place lanes, pairwise distinct.
type Ticket struct {
	First  int `json:"first"`
	Second int `json:"second"`
	Third  int `json:"third"`
}

// NewTicket validates lane range and pairwise distinctness.
func NewTicket(first, second, third int) (Ticket, error) {
	for _, lane := range []int{first, second, third} {
		if lane < 1 || lane > NumLanes {
			return Ticket{}, eris.Errorf("model: lane %d out of range 1-%d", lane, NumLanes)
		}
	}
	if first == second || first == third || second == third {
		return Ticket{}, eris.Errorf("model: ticket %d-%d-%d repeats a lane", first, second, third)
	}
	return Ticket{First: first, Second: second, Third: third}, nil
}

func (t Ticket) String() string {
	return fmt.Sprintf("%d-%d-%d", t.First, t.Second, t.Third)
}

// ParseTicket parses "1-3-2" notation.
func ParseTicket(s string) (Ticket, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return Ticket{}, eris.Errorf("model: bad ticket notation %q", s)
	}
	var lanes [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Ticket{}, eris.Wrapf(err, "model: bad ticket notation %q", s)
		}
		lanes[i] = n
	}
	return NewTicket(lanes[0], lanes[1], lanes[2])
}

// BucketName identifies a prediction bucket.
type BucketName string

const (
	BucketPrimary  BucketName = "primary"
	BucketCover    BucketName = "cover"
	BucketLongshot BucketName = "longshot"
)

// Buckets groups tickets by conviction. Primary is the main line, cover
// hedges the second tier, longshot hedges upsets from the outside.
type Buckets struct {
	Primary  []Ticket `json:"primary"`
	Cover    []Ticket `json:"cover"`
	Longshot []Ticket `json:"longshot"`
}

// All returns every ticket across buckets in priority order.
func (b Buckets) All() []Ticket {
	out := make([]Ticket, 0, len(b.Primary)+len(b.Cover)+len(b.Longshot))
	out = append(out, b.Primary...)
	out = append(out, b.Cover...)
	out = append(out, b.Longshot...)
	return out
}
