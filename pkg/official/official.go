// Package official builds requests for the operator's boatrace.jp pages.
// Used as the fallback when the analytics site has nothing for a race.
package official

import "fmt"

// BaseURL is the production host. Overridable for tests.
const BaseURL = "https://www.boatrace.jp"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BeforeInfoURL returns the pre-race information page URL. The venue code is
// zero-padded ("jcd=01") and the date is YYYYMMDD.
func BeforeInfoURL(base string, venueID, raceNumber int, date string) string {
	return fmt.Sprintf("%s/owpc/pc/race/beforeinfo?rno=%d&jcd=%02d&hd=%s",
		base, raceNumber, venueID, date)
}

// BeforeInfoURLAlt is the same page with the historical parameter order.
// Some cached intermediaries only recognize this shape.
func BeforeInfoURLAlt(base string, venueID, raceNumber int, date string) string {
	return fmt.Sprintf("%s/owpc/pc/race/beforeinfo?hd=%s&jcd=%02d&rno=%d",
		base, date, venueID, raceNumber)
}

// Headers returns the request headers for the official site.
func Headers() map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept-Language": "ja,en-US;q=0.9,en;q=0.8",
	}
}

// Labels returns the metric row labels present on the beforeinfo page.
func Labels() []string {
	return []string{"展示タイム", "チルト"}
}
