// Package report turns extracted pages into per-student standards tallies.
package report

import (
	"fmt"
	"sort"

	"github.com/a3tai/score-report-reader/internal/marks"
)

// RowKey is a recognized standard code and where it sits on its page.
type RowKey struct {
	Key  string  `json:"key"`
	Text string  `json:"text"`
	Page int     `json:"page"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	Y1   float64 `json:"y1"`
}

// Center returns the vertical center of the row's text.
func (r RowKey) Center() float64 { return (r.Y0 + r.Y1) / 2 }

// Tally counts classified outcomes. Unknown outcomes are not part of it.
type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Partial   int `json:"partial"`
}

// Add counts o and reports whether it was one of the three tallied
// outcomes.
func (t *Tally) Add(o marks.Outcome) bool {
	switch o {
	case marks.Correct:
		t.Correct++
	case marks.Incorrect:
		t.Incorrect++
	case marks.Partial:
		t.Partial++
	default:
		return false
	}
	return true
}

// Plus returns the bucket-wise sum of t and o.
func (t Tally) Plus(o Tally) Tally {
	return Tally{
		Correct:   t.Correct + o.Correct,
		Incorrect: t.Incorrect + o.Incorrect,
		Partial:   t.Partial + o.Partial,
	}
}

// Total is the success-rate denominator.
func (t Tally) Total() int { return t.Correct + t.Incorrect + t.Partial }

// SuccessRate is (correct + half of partial) over the tallied rows. It is
// undefined when nothing was tallied.
func SuccessRate(t Tally) (float64, bool) {
	total := t.Total()
	if total == 0 {
		return 0, false
	}
	return (float64(t.Correct) + 0.5*float64(t.Partial)) / float64(total), true
}

// LexileRange is a reading-level score; either bound may be missing.
type LexileRange struct {
	Lower *int `json:"lower,omitempty"`
	Upper *int `json:"upper,omitempty"`
}

func (l LexileRange) String() string {
	switch {
	case l.Lower != nil && l.Upper != nil:
		return fmt.Sprintf("%dL-%dL", *l.Lower, *l.Upper)
	case l.Lower != nil:
		return fmt.Sprintf("%dL", *l.Lower)
	case l.Upper != nil:
		return fmt.Sprintf("-%dL", *l.Upper)
	}
	return ""
}

// StudentRecord is everything attributed to one student.
type StudentRecord struct {
	Name        string           `json:"name"`
	Lexile      LexileRange      `json:"lexile"`
	Proficiency string           `json:"proficiency,omitempty"`
	Standards   map[string]Tally `json:"standards"`
	// Unknown counts rows per standard whose outcome could not be
	// determined; they never enter Standards.
	Unknown      map[string]int `json:"unknown,omitempty"`
	RowsFound    int            `json:"rows_found"`
	MarksMatched int            `json:"marks_matched"`
	Files        []string       `json:"files,omitempty"`
}

func NewStudentRecord(name string) *StudentRecord {
	return &StudentRecord{
		Name:      name,
		Standards: make(map[string]Tally),
		Unknown:   make(map[string]int),
	}
}

// Record attributes one row outcome to the student. located tells whether
// a mark primitive was found for the row at all.
func (s *StudentRecord) Record(key string, o marks.Outcome, located bool) {
	s.RowsFound++
	if located {
		s.MarksMatched++
	}
	t := s.Standards[key]
	if !t.Add(o) {
		s.Unknown[key]++
		return
	}
	s.Standards[key] = t
}

// UnknownCount sums the unknown rows over all standards.
func (s *StudentRecord) UnknownCount() int {
	n := 0
	for _, c := range s.Unknown {
		n += c
	}
	return n
}

// Overall sums the student's tallies over every standard.
func (s *StudentRecord) Overall() Tally {
	var t Tally
	for _, st := range s.Standards {
		t = t.Plus(st)
	}
	return t
}

// SetLexile fills each missing bound; bounds already set are kept.
func (s *StudentRecord) SetLexile(l LexileRange) {
	if s.Lexile.Lower == nil && l.Lower != nil {
		v := *l.Lower
		s.Lexile.Lower = &v
	}
	if s.Lexile.Upper == nil && l.Upper != nil {
		v := *l.Upper
		s.Lexile.Upper = &v
	}
}

// SetProficiency sets the category unless one was already found.
func (s *StudentRecord) SetProficiency(p string) {
	if s.Proficiency == "" {
		s.Proficiency = p
	}
}

// Merge folds o into s. Tallies add; identity fields keep s's values when
// present.
func (s *StudentRecord) Merge(o *StudentRecord) {
	for k, t := range o.Standards {
		s.Standards[k] = s.Standards[k].Plus(t)
	}
	for k, n := range o.Unknown {
		s.Unknown[k] += n
	}
	s.RowsFound += o.RowsFound
	s.MarksMatched += o.MarksMatched
	s.SetLexile(o.Lexile)
	s.SetProficiency(o.Proficiency)
	s.Files = append(s.Files, o.Files...)
}

// StandardsSummary maps each standard code to its tally over all students.
type StandardsSummary map[string]Tally

// SummaryRow is one standard of a ranked summary.
type SummaryRow struct {
	Key         string  `json:"key"`
	Tally       Tally   `json:"tally"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
	HasRate     bool    `json:"has_rate"`
}

// Rows returns the summary ordered by success rate, highest first, then
// by key. Standards without a rate sort last.
func (s StandardsSummary) Rows() []SummaryRow {
	rows := make([]SummaryRow, 0, len(s))
	for k, t := range s {
		rate, ok := SuccessRate(t)
		rows = append(rows, SummaryRow{Key: k, Tally: t, Total: t.Total(), SuccessRate: rate, HasRate: ok})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.HasRate != b.HasRate {
			return a.HasRate
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		return a.Key < b.Key
	})
	return rows
}

// Band groups a success rate for display.
type Band string

const (
	BandStrength       Band = "strength"
	BandDeveloping     Band = "developing"
	BandNeedsAttention Band = "needs_attention"
)

// BandFor places a rate into its band: at least 80% is a strength, below
// 60% needs attention.
func BandFor(rate float64) Band {
	switch {
	case rate >= 0.8:
		return BandStrength
	case rate >= 0.6:
		return BandDeveloping
	default:
		return BandNeedsAttention
	}
}
