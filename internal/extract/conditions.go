package extract

import (
	"regexp"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
	"github.com/uzuki-lab/kyotei-cli/internal/normalize"
)

var (
	windSpeedRe = regexp.MustCompile(`風速\s*:?\s*(\d+(?:\.\d+)?)\s*m`)
	waveRe      = regexp.MustCompile(`波高?\s*:?\s*(\d+(?:\.\d+)?)\s*cm`)
	weatherRe   = regexp.MustCompile(`晴|曇|雨|雪|霧`)
	windDirRe   = regexp.MustCompile(`追い風|向かい風|横風|無風`)
)

// Conditions scans the whole document for race-level weather context. These
// live outside the metrics block, often in a separate summary strip, so a
// bounded regex scan is more robust than layout assumptions. Anything not
// found stays nil or empty.
func Conditions(body string) model.RaceConditions {
	text := normalize.Fold(body)
	var c model.RaceConditions

	if m := windSpeedRe.FindStringSubmatch(text); m != nil {
		c.WindSpeed = normalize.Number(m[1])
	}
	if m := waveRe.FindStringSubmatch(text); m != nil {
		c.WaveHeight = normalize.Number(m[1])
	}
	if m := weatherRe.FindString(text); m != "" {
		c.Weather = m
	}
	if m := windDirRe.FindString(text); m != "" {
		c.WindDirection = m
	}
	return c
}
