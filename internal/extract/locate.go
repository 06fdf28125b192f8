// Package extract finds the per-competitor metrics region in a fetched
// document and maps it into typed lane metrics. Sources render the same
// logical block either as a table or as label-prefixed runs of numbers in
// card markup, so location is a tagged two-layout affair.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/uzuki-lab/kyotei-cli/internal/normalize"
)

// ErrNoBlock is returned when neither layout matches the document.
var ErrNoBlock = eris.New("extract: no metric block found")

// Layout tags which structural shape the locator recognized.
type Layout string

const (
	LayoutTabular  Layout = "tabular"
	LayoutFreeText Layout = "freetext"
)

// freeTextWindow bounds how far past a label the free-text scan looks for
// the six lane values.
const freeTextWindow = 600

// freeTextQuorum is the minimum number of labels that must be followed by a
// full run of values; not every source exposes every metric.
const freeTextQuorum = 2

// Block is a located metrics region, ready for extraction.
type Block struct {
	Layout Layout

	// Rows holds folded cell texts per table row when Layout is tabular.
	Rows [][]string
	// Text holds the folded document text when Layout is free-text.
	Text string

	// LabelHits is how many expected labels the region matched.
	LabelHits int
}

// Locate finds the metrics region for the given expected labels. Tables are
// preferred; the free-text scan is the fallback for card-style markup.
func Locate(body string, labels []string) (*Block, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if b := locateTable(doc, labels); b != nil {
			return b, nil
		}
	}

	text := normalize.Fold(body)
	if doc != nil {
		text = normalize.Fold(doc.Text())
	}
	if b := locateFreeText(text, labels); b != nil {
		return b, nil
	}
	return nil, ErrNoBlock
}

// HasBlock reports whether the document contains a recognizable metrics
// region. The fetcher uses this as its acceptance check: a 2xx page without
// a block is a failed candidate.
func HasBlock(body string, labels []string) bool {
	_, err := Locate(body, labels)
	return err == nil
}

// locateTable scores every table by matched labels plus a bonus for a row
// wide enough to hold a label and six lanes, and keeps the best scorer.
func locateTable(doc *goquery.Document, labels []string) *Block {
	var (
		bestRows  [][]string
		bestScore int
		bestHits  int
	)

	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var rows [][]string
		wide := false
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalize.Fold(strings.TrimSpace(cell.Text())))
			})
			if len(cells) >= 7 {
				wide = true
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) == 0 {
			return
		}

		flat := flatten(rows)
		hits := countLabels(flat, labels)
		score := hits
		if wide {
			score++
		}
		if score > bestScore {
			bestScore, bestHits, bestRows = score, hits, rows
		}
	})

	if bestScore == 0 || bestHits == 0 {
		return nil
	}
	return &Block{Layout: LayoutTabular, Rows: bestRows, LabelHits: bestHits}
}

// locateFreeText accepts the document when at least freeTextQuorum labels
// are each followed by six numeric tokens within the scan window.
func locateFreeText(text string, labels []string) *Block {
	hits := 0
	for _, label := range labels {
		idx := findLabel(text, normalize.Fold(label), labels)
		if idx < 0 {
			continue
		}
		window := runeWindow(text[idx:], freeTextWindow)
		if len(tokenRe.FindAllString(window, 7)) >= 6 {
			hits++
		}
	}
	if hits < freeTextQuorum {
		return nil
	}
	return &Block{Layout: LayoutFreeText, Text: text, LabelHits: hits}
}

// findLabel returns the byte index of the first occurrence of label that is
// not embedded inside a longer known label, so "ST" never matches the "ST順位"
// or "平均ST" rows.
func findLabel(text, label string, all []string) int {
	from := 0
	for {
		rel := strings.Index(text[from:], label)
		if rel < 0 {
			return -1
		}
		idx := from + rel
		if !embedded(text, idx, label, all) {
			return idx
		}
		from = idx + len(label)
	}
}

func embedded(text string, idx int, label string, all []string) bool {
	for _, other := range all {
		o := normalize.Fold(other)
		if o == label || !strings.Contains(o, label) {
			continue
		}
		off := strings.Index(o, label)
		start := idx - off
		if start >= 0 && start+len(o) <= len(text) && text[start:start+len(o)] == o {
			return true
		}
	}
	return false
}

func countLabels(text string, labels []string) int {
	n := 0
	for _, label := range labels {
		if strings.Contains(text, normalize.Fold(label)) {
			n++
		}
	}
	return n
}

func flatten(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, " "))
		sb.WriteByte(' ')
	}
	return sb.String()
}

// runeWindow truncates s to at most n runes.
func runeWindow(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
