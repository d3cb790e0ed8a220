package report

import (
	"sort"
	"strings"
)

// Fold sums the students' tallies per standard. The result depends only
// on the multiset of records, never on their order.
func Fold(records ...*StudentRecord) StandardsSummary {
	sum := make(StandardsSummary)
	for _, r := range records {
		if r == nil {
			continue
		}
		for k, t := range r.Standards {
			sum[k] = sum[k].Plus(t)
		}
	}
	return sum
}

// Filter selects students for a partial summary. Zero fields match
// everything.
type Filter struct {
	Proficiency []string `json:"proficiency,omitempty"`
	MinLexile   *int     `json:"min_lexile,omitempty"`
	MaxLexile   *int     `json:"max_lexile,omitempty"`
}

// IsZero reports whether the filter selects every student.
func (f Filter) IsZero() bool {
	return len(f.Proficiency) == 0 && f.MinLexile == nil && f.MaxLexile == nil
}

// Match reports whether s passes the filter. Lexile bounds compare
// against the lower limit of the student's range; students without one
// fail a Lexile bound.
func (f Filter) Match(s *StudentRecord) bool {
	if len(f.Proficiency) > 0 {
		ok := false
		for _, p := range f.Proficiency {
			if strings.EqualFold(strings.TrimSpace(p), s.Proficiency) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.MinLexile == nil && f.MaxLexile == nil {
		return true
	}
	if s.Lexile.Lower == nil {
		return false
	}
	v := *s.Lexile.Lower
	if f.MinLexile != nil && v < *f.MinLexile {
		return false
	}
	if f.MaxLexile != nil && v > *f.MaxLexile {
		return false
	}
	return true
}

// DocumentSummary is the per-file line of a batch result.
type DocumentSummary struct {
	File         string `json:"file"`
	Pages        int    `json:"pages"`
	Students     int    `json:"students"`
	RowsFound    int    `json:"rows_found"`
	MarksMatched int    `json:"marks_matched"`
	Orphaned     int    `json:"orphaned"`
	Failed       bool   `json:"failed,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result is the structured output of one batch run.
type Result struct {
	RunID       string                    `json:"run_id,omitempty"`
	Students    map[string]*StudentRecord `json:"students"`
	Summary     StandardsSummary          `json:"summary"`
	Documents   []DocumentSummary         `json:"documents"`
	Diagnostics Diagnostics               `json:"diagnostics"`
}

// StudentNames returns the student names sorted.
func (r *Result) StudentNames() []string {
	names := make([]string, 0, len(r.Students))
	for n := range r.Students {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Filtered re-folds the summary over the students matching f.
func (r *Result) Filtered(f Filter) StandardsSummary {
	var recs []*StudentRecord
	for _, n := range r.StudentNames() {
		if s := r.Students[n]; f.Match(s) {
			recs = append(recs, s)
		}
	}
	return Fold(recs...)
}

// Aggregator collects document results for one batch run. It is built per
// run and discarded afterwards.
type Aggregator struct {
	students map[string]*StudentRecord
	docs     []DocumentSummary
	diags    Diagnostics
}

func NewAggregator() *Aggregator {
	return &Aggregator{students: make(map[string]*StudentRecord)}
}

// AddDocument merges a document's students by name and keeps its
// diagnostics.
func (a *Aggregator) AddDocument(res DocumentResult) {
	students := 0
	for _, s := range res.Students {
		students++
		rec, ok := a.students[s.Name]
		if !ok {
			rec = NewStudentRecord(s.Name)
			a.students[s.Name] = rec
		}
		rec.Merge(s)
	}
	a.docs = append(a.docs, DocumentSummary{
		File:         res.File,
		Pages:        res.Pages,
		Students:     students,
		RowsFound:    res.RowsFound,
		MarksMatched: res.MarksMatched,
		Orphaned:     res.Orphaned,
	})
	a.diags = append(a.diags, res.Diagnostics...)
}

// AddFailure records a file that could not be read at all.
func (a *Aggregator) AddFailure(file string, err error) {
	a.docs = append(a.docs, DocumentSummary{File: file, Failed: true, Error: err.Error()})
	a.diags.add(LevelError, KindFileFailed, file, 0, "", "file could not be parsed: %v", err)
}

// Result returns the batch output with the summary folded from the
// merged student records.
func (a *Aggregator) Result(runID string) *Result {
	recs := make([]*StudentRecord, 0, len(a.students))
	for _, s := range a.students {
		recs = append(recs, s)
	}
	return &Result{
		RunID:       runID,
		Students:    a.students,
		Summary:     Fold(recs...),
		Documents:   a.docs,
		Diagnostics: a.diags,
	}
}
