package fetch

import (
	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/pkg/biyori"
	"github.com/uzuki-lab/kyotei-cli/pkg/official"
)

// Source describes one place a race document can come from: how to build
// its URL, what identity to present and which metric labels its pages are
// expected to carry.
type Source interface {
	ID() string
	URL(q model.RaceQuery) string
	Headers() map[string]string
	Labels() []string
}

// DefaultSources returns the candidate list in priority order: the two
// freshness variants of the analytics site, then the operator's official
// page in both parameter spellings. Empty bases fall back to production
// hosts; tests point them at local servers.
func DefaultSources(biyoriBase, officialBase string) []Source {
	if biyoriBase == "" {
		biyoriBase = biyori.BaseURL
	}
	if officialBase == "" {
		officialBase = official.BaseURL
	}
	return []Source{
		biyoriSource{base: biyoriBase, slider: biyori.SliderChokuzen},
		biyoriSource{base: biyoriBase, slider: biyori.SliderMyData},
		officialSource{base: officialBase},
		officialSource{base: officialBase, alt: true},
	}
}

type biyoriSource struct {
	base   string
	slider int
}

func (s biyoriSource) ID() string {
	if s.slider == biyori.SliderMyData {
		return "biyori-mydata"
	}
	return "biyori-chokuzen"
}

func (s biyoriSource) URL(q model.RaceQuery) string {
	return biyori.RaceURL(s.base, q.VenueID, q.RaceNumber, q.Date, s.slider)
}

func (s biyoriSource) Headers() map[string]string { return biyori.Headers() }

func (s biyoriSource) Labels() []string { return biyori.Labels(s.slider) }

type officialSource struct {
	base string
	alt  bool
}

func (s officialSource) ID() string {
	if s.alt {
		return "official-alt"
	}
	return "official"
}

func (s officialSource) URL(q model.RaceQuery) string {
	if s.alt {
		return official.BeforeInfoURLAlt(s.base, q.VenueID, q.RaceNumber, q.Date)
	}
	return official.BeforeInfoURL(s.base, q.VenueID, q.RaceNumber, q.Date)
}

func (s officialSource) Headers() map[string]string { return official.Headers() }

func (s officialSource) Labels() []string { return official.Labels() }
