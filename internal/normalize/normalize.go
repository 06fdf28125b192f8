// Package normalize converts the noisy numeric tokens found on race pages
// into typed values. Sources mix full-width and half-width digits, mark
// flagged starts with F/L prefixes, abbreviate "0.12" as ".12" and render
// missing values as assorted dashes. Nothing here ever returns an error:
// a token either yields a number or nil.
package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// replacer catches the characters width folding leaves alone: minus sign,
// horizontal bars and the katakana prolonged sound mark used as a dash.
var replacer = strings.NewReplacer(
	"−", "-", // minus sign
	"–", "-", // en dash
	"—", "-", // em dash
	"―", "-", // horizontal bar
	"ー", "-", // katakana-hiragana prolonged sound mark
	"　", " ", // ideographic space
)

// Fold converts full-width digits, letters and punctuation to their ASCII
// forms and unifies dash variants.
func Fold(s string) string {
	return replacer.Replace(width.Fold.String(s))
}

// Number parses a raw token into a float. Flagged-start markers are
// stripped but the penalized value is kept; a leading decimal point gets an
// implicit zero; placeholder tokens and garbage resolve to nil.
func Number(raw string) *float64 {
	s := strings.TrimSpace(Fold(raw))
	if s == "" || isPlaceholder(s) {
		return nil
	}
	s, _ = stripFlag(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if s == "" || isPlaceholder(s) {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Flagged reports whether a start-timing token carries a flying or late
// start marker. Only meaningful when Number(raw) is non-nil.
func Flagged(raw string) bool {
	s := strings.TrimSpace(Fold(raw))
	_, flagged := stripFlag(s)
	return flagged
}

// Format renders a normalized value back to its canonical token form.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// stripFlag removes a leading F or L when the rest of the token still reads
// as a number, so "F.05" keeps its 0.05 timing.
func stripFlag(s string) (string, bool) {
	if s == "" {
		return s, false
	}
	r := rune(s[0])
	if r != 'F' && r != 'f' && r != 'L' && r != 'l' {
		return s, false
	}
	rest := s[1:]
	if rest == "" {
		return s, false
	}
	if rest[0] != '.' && !unicode.IsDigit(rune(rest[0])) {
		return s, false
	}
	return rest, true
}

// isPlaceholder reports whether every rune is dash, dot, ellipsis or space.
func isPlaceholder(s string) bool {
	for _, r := range s {
		switch r {
		case '-', '.', ' ', '…':
		default:
			return false
		}
	}
	return true
}
