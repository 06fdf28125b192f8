// Package biyori builds requests for the kyoteibiyori.com pre-race pages.
// The site serves several freshness variants of the same race card selected
// by a "slider" parameter; only the two useful ones are modeled here.
package biyori

import "fmt"

// BaseURL is the production host. Overridable for tests.
const BaseURL = "https://kyoteibiyori.com"

// Slider variants. Chokuzen carries the just-before-race exhibition block,
// MyData carries the averaged start statistics.
const (
	SliderChokuzen = 4
	SliderMyData   = 9
)

// The site returns a stripped mobile page to unknown clients, so requests
// carry a desktop browser identity.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RaceURL returns the race card URL for one venue, race, date and slider.
// Date is YYYYMMDD.
func RaceURL(base string, venueID, raceNumber int, date string, slider int) string {
	return fmt.Sprintf("%s/race_shusso.php?place_no=%d&race_no=%d&hiduke=%s&slider=%d",
		base, venueID, raceNumber, date, slider)
}

// Headers returns the browser identity headers the site expects.
func Headers() map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Referer":         BaseURL + "/",
		"Accept-Language": "ja,en-US;q=0.9,en;q=0.8",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	}
}

// Labels returns the metric row labels the given slider variant exposes.
func Labels(slider int) []string {
	switch slider {
	case SliderMyData:
		return []string{"平均ST", "ST順位"}
	default:
		return []string{"展示", "周回", "周り足", "直線"}
	}
}
