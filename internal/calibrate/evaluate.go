package calibrate

import (
	"context"
	"sort"

	"github.com/a3tai/score-report-reader/internal/marks"
	"github.com/a3tai/score-report-reader/internal/report"
)

// VariantNone collects labels whose row was found but had no mark.
const VariantNone = "none"

// FileAnalyzer analyzes one report file.
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, path string) (*report.DocumentResult, error)
}

// Matrix counts predictions per expected outcome: Matrix[expected][predicted].
type Matrix [4][4]int

// Total returns the number of labels counted.
func (m *Matrix) Total() int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// Correct returns the number of labels on the diagonal.
func (m *Matrix) Correct() int {
	n := 0
	for i := range m {
		n += m[i][i]
	}
	return n
}

// Accuracy is Correct over Total; ok is false for an empty matrix.
func (m *Matrix) Accuracy() (float64, bool) {
	total := m.Total()
	if total == 0 {
		return 0, false
	}
	return float64(m.Correct()) / float64(total), true
}

// Mismatch is a label the analyzer disagreed with.
type Mismatch struct {
	Label     Label         `json:"label"`
	Predicted marks.Outcome `json:"predicted"`
	Variant   string        `json:"variant"`
}

// Report is the outcome of one calibration run.
type Report struct {
	Variants   map[string]*Matrix `json:"variants"`
	Overall    Matrix             `json:"overall"`
	Mismatches []Mismatch         `json:"mismatches,omitempty"`
	// Missing are labels whose row the analyzer never produced.
	Missing []Label `json:"missing,omitempty"`
	// Failed maps files that could not be analyzed to the reason.
	Failed map[string]string `json:"failed,omitempty"`
}

// VariantNames returns the variants present, sorted.
func (r *Report) VariantNames() []string {
	names := make([]string, 0, len(r.Variants))
	for n := range r.Variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Report) count(variant string, want, got marks.Outcome) {
	m, ok := r.Variants[variant]
	if !ok {
		m = &Matrix{}
		r.Variants[variant] = m
	}
	m[want][got]++
	r.Overall[want][got]++
}

// Evaluate analyzes every file the manifest names and scores each label
// against the row the analyzer produced for it.
func Evaluate(ctx context.Context, a FileAnalyzer, m *Manifest) (*Report, error) {
	out := &Report{
		Variants: make(map[string]*Matrix),
		Failed:   make(map[string]string),
	}

	results := make(map[string]*report.DocumentResult)
	for _, f := range m.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := a.AnalyzeFile(ctx, f)
		if err != nil {
			out.Failed[f] = err.Error()
			continue
		}
		results[f] = res
	}

	for _, l := range m.Labels {
		res, ok := results[l.File]
		if !ok {
			continue
		}
		row, ok := findRow(res.Rows, l)
		if !ok {
			out.Missing = append(out.Missing, l)
			continue
		}
		variant := row.MarkKind
		if variant == "" {
			variant = VariantNone
		}
		out.count(variant, l.outcome, row.Outcome)
		if row.Outcome != l.outcome {
			out.Mismatches = append(out.Mismatches, Mismatch{Label: l, Predicted: row.Outcome, Variant: variant})
		}
	}
	return out, nil
}

// findRow returns the first row matching the label's standard and, when
// given, its page and student.
func findRow(rows []report.RowOutcome, l Label) (report.RowOutcome, bool) {
	for _, r := range rows {
		if r.Row.Key != l.Standard {
			continue
		}
		if l.Page > 0 && r.Row.Page != l.Page {
			continue
		}
		if l.Student != "" && r.Student != l.Student {
			continue
		}
		return r, true
	}
	return report.RowOutcome{}, false
}
