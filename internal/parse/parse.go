// Package parse turns free-text race requests like "桐生 8R 20260825" or
// "住之江 12" into validated queries. The prediction pipeline itself never
// sees free text; this sits in front of it on the CLI and HTTP surfaces.
package parse

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/normalize"
	"github.com/uzuki-lab/kyotei-cli/internal/venue"
)

// jst is used when the date is omitted; race cards roll over on Japan time.
var jst = time.FixedZone("JST", 9*60*60)

// Parse reads "<venue> <race>[R] [YYYYMMDD]". The date defaults to today
// in JST.
func Parse(text string) (model.RaceQuery, error) {
	return ParseAt(text, time.Now())
}

// ParseAt is Parse with an explicit clock.
func ParseAt(text string, now time.Time) (model.RaceQuery, error) {
	fields := strings.Fields(normalize.Fold(text))
	if len(fields) < 2 {
		return model.RaceQuery{}, eris.Errorf("parse: need venue and race number in %q", text)
	}

	v, ok := venue.ByName(fields[0])
	if !ok {
		return model.RaceQuery{}, eris.Errorf("parse: unknown venue %q", fields[0])
	}

	raceNo, err := parseRaceNumber(fields[1])
	if err != nil {
		return model.RaceQuery{}, err
	}

	date := now.In(jst).Format("20060102")
	if len(fields) >= 3 {
		date = fields[2]
	}

	q, err := model.NewRaceQuery(v.ID, raceNo, date)
	if err != nil {
		return model.RaceQuery{}, eris.Wrapf(err, "parse: %q", text)
	}
	return q, nil
}

// parseRaceNumber accepts "8", "8R" and "8レース" style tokens.
func parseRaceNumber(tok string) (int, error) {
	digits := strings.TrimRightFunc(tok, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, eris.Errorf("parse: bad race number %q", tok)
	}
	return n, nil
}
