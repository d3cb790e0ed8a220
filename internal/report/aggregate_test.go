package report

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/score-report-reader/internal/marks"
)

func intp(v int) *int { return &v }

func student(name string, outcomes map[string][]marks.Outcome) *StudentRecord {
	s := NewStudentRecord(name)
	for key, os := range outcomes {
		for _, o := range os {
			s.Record(key, o, o != marks.Unknown)
		}
	}
	return s
}

func TestTally(t *testing.T) {
	var tl Tally
	assert.True(t, tl.Add(marks.Correct))
	assert.True(t, tl.Add(marks.Partial))
	assert.True(t, tl.Add(marks.Incorrect))
	assert.False(t, tl.Add(marks.Unknown))
	assert.Equal(t, Tally{Correct: 1, Incorrect: 1, Partial: 1}, tl)
	assert.Equal(t, 3, tl.Total())
	assert.Equal(t, Tally{Correct: 2, Incorrect: 1, Partial: 3}, tl.Plus(Tally{Correct: 1, Partial: 2}))

	rate, ok := SuccessRate(tl)
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-9)

	_, ok = SuccessRate(Tally{})
	assert.False(t, ok)
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandStrength, BandFor(0.8))
	assert.Equal(t, BandDeveloping, BandFor(0.79))
	assert.Equal(t, BandDeveloping, BandFor(0.6))
	assert.Equal(t, BandNeedsAttention, BandFor(0.59))
}

func TestStudentRecord(t *testing.T) {
	s := NewStudentRecord("Jane Doe")
	s.Record("3.RC.1", marks.Correct, true)
	s.Record("3.RC.1", marks.Unknown, true)
	s.Record("3.RC.2", marks.Unknown, false)

	assert.Equal(t, 3, s.RowsFound)
	assert.Equal(t, 2, s.MarksMatched)
	assert.Equal(t, 2, s.UnknownCount())
	assert.Equal(t, Tally{Correct: 1}, s.Standards["3.RC.1"])
	_, tallied := s.Standards["3.RC.2"]
	assert.False(t, tallied, "unknown rows never enter the tally")

	s.SetLexile(LexileRange{Lower: intp(700)})
	s.SetLexile(LexileRange{Lower: intp(500), Upper: intp(900)})
	assert.Equal(t, "700L-900L", s.Lexile.String())
	assert.Equal(t, "-900L", LexileRange{Upper: intp(900)}.String())
	assert.Empty(t, LexileRange{}.String())

	other := student("Jane Doe", map[string][]marks.Outcome{"3.RC.1": {marks.Incorrect}, "3.RC.3": {marks.Partial}})
	other.Proficiency = "Below Proficiency"
	other.Files = []string{"b.pdf"}
	s.Files = []string{"a.pdf"}
	s.Merge(other)

	assert.Equal(t, Tally{Correct: 1, Incorrect: 1}, s.Standards["3.RC.1"])
	assert.Equal(t, Tally{Partial: 1}, s.Standards["3.RC.3"])
	assert.Equal(t, 5, s.RowsFound)
	assert.Equal(t, "Below Proficiency", s.Proficiency)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, s.Files)
	assert.Equal(t, Tally{Correct: 1, Incorrect: 1, Partial: 1}, s.Overall())
}

func TestFold_Consistency(t *testing.T) {
	students := []*StudentRecord{
		student("A", map[string][]marks.Outcome{
			"3.RC.1": {marks.Correct, marks.Correct, marks.Unknown},
			"3.RC.2": {marks.Incorrect},
		}),
		student("B", map[string][]marks.Outcome{
			"3.RC.1": {marks.Partial},
			"3.RC.3": {marks.Correct, marks.Incorrect},
		}),
		student("C", map[string][]marks.Outcome{
			"3.RC.2": {marks.Partial, marks.Partial},
		}),
	}
	sum := Fold(students...)

	for key, got := range sum {
		var want Tally
		for _, s := range students {
			want = want.Plus(s.Standards[key])
		}
		assert.Equal(t, want, got, key)
	}
	assert.Len(t, sum, 3)
	assert.Equal(t, Tally{Correct: 2, Partial: 1}, sum["3.RC.1"])

	assert.Equal(t, sum, Fold(students[2], nil, students[0], students[1]))
	assert.Empty(t, Fold())
}

func TestStandardsSummary_Rows(t *testing.T) {
	sum := StandardsSummary{
		"3.RC.1": {Correct: 1, Incorrect: 1},
		"3.RC.2": {Correct: 4, Incorrect: 1},
		"3.RC.3": {},
		"3.RC.0": {Partial: 2},
	}
	rows := sum.Rows()
	require.Len(t, rows, 4)
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	assert.Equal(t, []string{"3.RC.2", "3.RC.0", "3.RC.1", "3.RC.3"}, keys)
	assert.InDelta(t, 0.8, rows[0].SuccessRate, 1e-9)
	assert.Equal(t, 5, rows[0].Total)
	assert.False(t, rows[3].HasRate)
}

func TestFilter(t *testing.T) {
	at := NewStudentRecord("At")
	at.Proficiency = "At Proficiency"
	at.Lexile.Lower = intp(800)
	below := NewStudentRecord("Below")
	below.Proficiency = "Below Proficiency"
	below.Lexile.Lower = intp(500)
	none := NewStudentRecord("None")

	tests := []struct {
		name   string
		filter Filter
		want   []bool
	}{
		{"zero", Filter{}, []bool{true, true, true}},
		{"proficiency", Filter{Proficiency: []string{" at proficiency"}}, []bool{true, false, false}},
		{"min lexile", Filter{MinLexile: intp(600)}, []bool{true, false, false}},
		{"max lexile", Filter{MaxLexile: intp(600)}, []bool{false, true, false}},
		{"both", Filter{Proficiency: []string{"Below Proficiency", "At Proficiency"}, MaxLexile: intp(900)}, []bool{true, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []bool{tt.filter.Match(at), tt.filter.Match(below), tt.filter.Match(none)}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{MinLexile: intp(0)}.IsZero())
}

func documents() []DocumentResult {
	a := DocumentResult{File: "a.pdf", Pages: 1, RowsFound: 3, MarksMatched: 3, Students: []*StudentRecord{
		student("Jane Doe", map[string][]marks.Outcome{"3.RC.1": {marks.Correct}, "3.RC.2": {marks.Incorrect}}),
	}}
	a.Students[0].Lexile.Lower = intp(850)
	a.Students[0].Proficiency = "At Proficiency"

	b := DocumentResult{File: "b.pdf", Pages: 2, RowsFound: 4, MarksMatched: 3, Students: []*StudentRecord{
		student("John Smith", map[string][]marks.Outcome{"3.RC.1": {marks.Partial}, "3.RC.2": {marks.Unknown}}),
		student("Jane Doe", map[string][]marks.Outcome{"3.RC.1": {marks.Incorrect}}),
	}}
	b.Students[0].Proficiency = "Below Proficiency"
	b.Diagnostics.add(LevelWarning, KindOrphanedRows, "b.pdf", 2, "", "1 rows discarded")
	return []DocumentResult{a, b}
}

func TestAggregator(t *testing.T) {
	docs := documents()
	agg := NewAggregator()
	for _, d := range docs {
		agg.AddDocument(d)
	}
	agg.AddFailure("broken.pdf", errors.New("not a PDF"))
	res := agg.Result("run-1")

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"Jane Doe", "John Smith"}, res.StudentNames())
	jane := res.Students["Jane Doe"]
	assert.Equal(t, Tally{Correct: 1, Incorrect: 1}, jane.Standards["3.RC.1"])
	assert.Equal(t, 850, *jane.Lexile.Lower)
	assert.Equal(t, "At Proficiency", jane.Proficiency)

	assert.Equal(t, StandardsSummary{
		"3.RC.1": {Correct: 1, Incorrect: 1, Partial: 1},
		"3.RC.2": {Incorrect: 1},
	}, res.Summary)

	require.Len(t, res.Documents, 3)
	assert.Equal(t, DocumentSummary{File: "b.pdf", Pages: 2, Students: 2, RowsFound: 4, MarksMatched: 3}, res.Documents[1])
	assert.True(t, res.Documents[2].Failed)
	assert.Equal(t, "not a PDF", res.Documents[2].Error)
	assert.Equal(t, 1, res.Diagnostics.Count(KindOrphanedRows))
	assert.Equal(t, 1, res.Diagnostics.Count(KindFileFailed))

	// Inputs are merged into fresh records, not aliased.
	assert.Equal(t, Tally{Correct: 1}, docs[0].Students[0].Standards["3.RC.1"])

	filtered := res.Filtered(Filter{Proficiency: []string{"Below Proficiency"}})
	assert.Equal(t, StandardsSummary{"3.RC.1": {Partial: 1}}, filtered)
	assert.Empty(t, res.Filtered(Filter{MinLexile: intp(900)}))
}

func TestAggregator_OrderIndependent(t *testing.T) {
	run := func(order ...int) *Result {
		docs := documents()
		agg := NewAggregator()
		for _, i := range order {
			agg.AddDocument(docs[i])
		}
		return agg.Result("")
	}
	ab, ba := run(0, 1), run(1, 0)
	assert.Equal(t, ab.Summary, ba.Summary)
	for _, name := range ab.StudentNames() {
		assert.Equal(t, ab.Students[name].Standards, ba.Students[name].Standards, name)
		assert.Equal(t, ab.Students[name].Overall(), ba.Students[name].Overall(), name)
	}
}

func TestDiagnostics(t *testing.T) {
	var ds Diagnostics
	ds.add(LevelInfo, KindStudentsFound, "a.pdf", 0, "", "Found %d students", 2)
	ds.add(LevelError, KindFileFailed, "", 0, "", "boom")
	ds.add(LevelWarning, KindOrphanedRows, "a.pdf", 4, "", "orphans")

	assert.Equal(t, []string{"[info] a.pdf: Found 2 students", "[error] boom", "[warn] a.pdf p4: orphans"}, ds.Lines())
	assert.Equal(t, 1, ds.Count(KindFileFailed))
	assert.Zero(t, ds.Count(KindNoRows))

	data, err := LevelWarning.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"warn"`, string(data))

	var names []string
	for i := range 7 {
		names = append(names, fmt.Sprintf("S%d", i))
	}
	assert.Equal(t, "S0, S1", studentList(names[:2]))
	assert.Equal(t, "S0, S1, S2, S3, S4 and 2 more", studentList(names))
}
