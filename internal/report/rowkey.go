package report

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/a3tai/score-report-reader/internal/layout"
)

// RowKeyExtractor recognizes standard codes with one ordered pattern set.
// A pattern with a named group "code" yields that group as the key, so
// prefix variants of the same code collate together; otherwise the whole
// match is the key.
type RowKeyExtractor struct {
	patterns []*regexp.Regexp
}

func NewRowKeyExtractor(patterns []string) (*RowKeyExtractor, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("row key pattern set is empty")
	}
	e := &RowKeyExtractor{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid row key pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

type keyMatch struct {
	key        string
	start, end int
}

// Match returns every key found in text, left to right. Earlier patterns
// win where matches overlap.
func (e *RowKeyExtractor) Match(text string) []string {
	ms := e.matches(text)
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.key
	}
	return out
}

func (e *RowKeyExtractor) matches(text string) []keyMatch {
	var found []keyMatch
	overlaps := func(s, t int) bool {
		for _, f := range found {
			if s < f.end && f.start < t {
				return true
			}
		}
		return false
	}
	for _, re := range e.patterns {
		code := re.SubexpIndex("code")
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(loc[0], loc[1]) {
				continue
			}
			key := text[loc[0]:loc[1]]
			if code > 0 && loc[2*code] >= 0 {
				key = text[loc[2*code]:loc[2*code+1]]
			}
			found = append(found, keyMatch{key: key, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })
	return found
}

// Extract returns the page's row keys top to bottom, then left to right.
// Each key carries the vertical span of the text run it was found in.
func (e *RowKeyExtractor) Extract(page layout.Page) []RowKey {
	var rows []RowKey
	for _, run := range page.Text {
		for _, m := range e.matches(run.Text) {
			rows = append(rows, RowKey{
				Key:  m.key,
				Text: run.Text,
				Page: page.Number,
				X0:   run.Box.X0,
				Y0:   run.Box.Y0,
				Y1:   run.Box.Y1,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Y0 != rows[j].Y0 {
			return rows[i].Y0 < rows[j].Y0
		}
		return rows[i].X0 < rows[j].X0
	})
	return rows
}
