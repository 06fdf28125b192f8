package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// NumLanes is the fixed field size of a race.
const NumLanes = 6

// RaceQuery identifies a single race. Immutable once built.
type RaceQuery struct {
	VenueID    int    `json:"venue_id"`
	RaceNumber int    `json:"race_number"`
	Date       string `json:"date"` // YYYYMMDD
}

// NewRaceQuery validates its inputs and returns an immutable query.
func NewRaceQuery(venueID, raceNumber int, date string) (RaceQuery, error) {
	if venueID < 1 || venueID > 24 {
		return RaceQuery{}, eris.Errorf("model: venue id %d out of range 1-24", venueID)
	}
	if raceNumber < 1 || raceNumber > 12 {
		return RaceQuery{}, eris.Errorf("model: race number %d out of range 1-12", raceNumber)
	}
	if _, err := time.Parse("20060102", date); err != nil {
		return RaceQuery{}, eris.Wrapf(err, "model: bad date %q", date)
	}
	return RaceQuery{VenueID: venueID, RaceNumber: raceNumber, Date: date}, nil
}

// Key returns the canonical race key, e.g. "20260825-05-12".
func (q RaceQuery) Key() string {
	return fmt.Sprintf("%s-%02d-%02d", q.Date, q.VenueID, q.RaceNumber)
}

func (q RaceQuery) String() string {
	return fmt.Sprintf("venue=%d race=%d date=%s", q.VenueID, q.RaceNumber, q.Date)
}

// SourceDocument is one fetched page. Request-scoped; one per fetch attempt.
type SourceDocument struct {
	SourceID  string    `json:"source_id"`
	URL       string    `json:"url"`
	RawBody   []byte    `json:"-"`
	Body      string    `json:"-"` // decoded to UTF-8
	FetchedAt time.Time `json:"fetched_at"`
}
