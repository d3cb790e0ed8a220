package calibrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/score-report-reader/internal/marks"
	"github.com/a3tai/score-report-reader/internal/report"
)

const sampleManifest = `
[[label]]
file = "a.pdf"
page = 1
student = "Jane Doe"
standard = "3.RC.1"
expected = "correct"

[[label]]
file = "a.pdf"
page = 1
student = "Jane Doe"
standard = "3.RC.2"
expected = "Incorrect"

[[label]]
file = "/abs/b.pdf"
standard = "3.RC.1"
expected = "partial"
`

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Labels, 3)

	assert.Equal(t, filepath.Join(dir, "a.pdf"), m.Labels[0].File)
	assert.Equal(t, "/abs/b.pdf", m.Labels[2].File)
	assert.Equal(t, marks.Incorrect, m.Labels[1].Outcome())
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), "/abs/b.pdf"}, m.Files())
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest("")
	assert.Error(t, err)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no labels", ``},
		{"bad toml", `[[label]`},
		{"missing file", "[[label]]\nstandard = \"3.RC.1\"\nexpected = \"correct\""},
		{"missing standard", "[[label]]\nfile = \"a.pdf\"\nexpected = \"correct\""},
		{"bad outcome", "[[label]]\nfile = \"a.pdf\"\nstandard = \"3.RC.1\"\nexpected = \"maybe\""},
		{"negative page", "[[label]]\nfile = \"a.pdf\"\npage = -1\nstandard = \"3.RC.1\"\nexpected = \"correct\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(tt.data, "/reports")
			assert.Error(t, err)
		})
	}
}

type fakeAnalyzer map[string]*report.DocumentResult

func (f fakeAnalyzer) AnalyzeFile(_ context.Context, path string) (*report.DocumentResult, error) {
	res, ok := f[path]
	if !ok {
		return nil, errors.New("unreadable")
	}
	return res, nil
}

func row(page int, student, key string, o marks.Outcome, kind string) report.RowOutcome {
	return report.RowOutcome{
		Row:      report.RowKey{Key: key, Page: page},
		Outcome:  o,
		MarkKind: kind,
		Student:  student,
	}
}

func TestEvaluate(t *testing.T) {
	m, err := ParseManifest(`
[[label]]
file = "a.pdf"
student = "Jane Doe"
standard = "3.RC.1"
expected = "correct"

[[label]]
file = "a.pdf"
student = "Jane Doe"
standard = "3.RC.2"
expected = "incorrect"

[[label]]
file = "a.pdf"
page = 2
student = "John Roe"
standard = "3.RC.1"
expected = "partial"

[[label]]
file = "a.pdf"
student = "Jane Doe"
standard = "3.RC.3"
expected = "correct"

[[label]]
file = "a.pdf"
student = "Jane Doe"
standard = "3.RC.9"
expected = "correct"

[[label]]
file = "broken.pdf"
standard = "3.RC.1"
expected = "correct"
`, "/reports")
	require.NoError(t, err)

	analyzer := fakeAnalyzer{
		"/reports/a.pdf": {
			Rows: []report.RowOutcome{
				row(1, "Jane Doe", "3.RC.1", marks.Correct, "vector"),
				row(1, "Jane Doe", "3.RC.2", marks.Partial, "vector"),
				row(1, "Jane Doe", "3.RC.3", marks.Unknown, ""),
				row(2, "John Roe", "3.RC.1", marks.Partial, "glyph"),
			},
		},
	}

	rep, err := Evaluate(context.Background(), analyzer, m)
	require.NoError(t, err)

	assert.Equal(t, []string{"glyph", "none", "vector"}, rep.VariantNames())
	assert.Equal(t, 1, rep.Variants["vector"][marks.Correct][marks.Correct])
	assert.Equal(t, 1, rep.Variants["vector"][marks.Incorrect][marks.Partial])
	assert.Equal(t, 1, rep.Variants["glyph"][marks.Partial][marks.Partial])
	assert.Equal(t, 1, rep.Variants["none"][marks.Correct][marks.Unknown])

	assert.Equal(t, 4, rep.Overall.Total())
	acc, ok := rep.Overall.Accuracy()
	require.True(t, ok)
	assert.InDelta(t, 0.5, acc, 1e-9)

	require.Len(t, rep.Mismatches, 2)
	assert.Equal(t, "3.RC.2", rep.Mismatches[0].Label.Standard)
	assert.Equal(t, marks.Partial, rep.Mismatches[0].Predicted)

	require.Len(t, rep.Missing, 1)
	assert.Equal(t, "3.RC.9", rep.Missing[0].Standard)
	assert.Contains(t, rep.Failed, "/reports/broken.pdf")
}

func TestEvaluateCancelled(t *testing.T) {
	m, err := ParseManifest("[[label]]\nfile = \"a.pdf\"\nstandard = \"3.RC.1\"\nexpected = \"correct\"", "/reports")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Evaluate(ctx, fakeAnalyzer{}, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatrixEmpty(t *testing.T) {
	var m Matrix
	_, ok := m.Accuracy()
	assert.False(t, ok)
}
