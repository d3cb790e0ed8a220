package pdf

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/score-report-reader/internal/pdf/errors"
)

func TestSearch_Find(t *testing.T) {
	dir := t.TempDir()
	search := NewSearch(NewValidator(1024 * 1024))

	testFiles := map[string][]byte{
		"grade3_smith_jane.pdf":      make([]byte, 1024),
		"grade3_doe_john.pdf":        make([]byte, 2048),
		"Grade4-Smith (Retake).PDF":  make([]byte, 512),
		"notes.txt":                  []byte("not a pdf"),
		"empty.pdf":                  {},
		"large.pdf":                  make([]byte, 2*1024*1024),
		"nested/grade5_lee_ann.pdf":  make([]byte, 100),
		".hidden/grade3_ghost.pdf":   make([]byte, 100),
		"nested/deeper/district.pdf": make([]byte, 100),
	}
	for name, content := range testFiles {
		writeFile(t, dir, name, content)
	}

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{
			name: "all reports",
			want: []string{
				"Grade4-Smith (Retake).PDF",
				"grade3_doe_john.pdf",
				"grade3_smith_jane.pdf",
				"district.pdf",
				"grade5_lee_ann.pdf",
			},
		},
		{
			name:  "substring",
			query: "smith",
			want:  []string{"Grade4-Smith (Retake).PDF", "grade3_smith_jane.pdf"},
		},
		{
			name:  "all words must match",
			query: "grade3 jane",
			want:  []string{"grade3_smith_jane.pdf"},
		},
		{
			name:  "word order does not matter",
			query: "retake smith",
			want:  []string{"Grade4-Smith (Retake).PDF"},
		},
		{
			name:  "no match",
			query: "algebra",
			want:  nil,
		},
		{
			name:  "limit",
			limit: 2,
			want:  []string{"Grade4-Smith (Retake).PDF", "grade3_doe_john.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := search.Find(context.Background(), dir, tt.query, tt.limit)
			require.NoError(t, err)

			var got []string
			for _, f := range files {
				got = append(got, f.Name)
				assert.NotEmpty(t, f.SizeHuman)
				assert.True(t, filepath.IsAbs(f.Path))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_FindErrors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "report.pdf", make([]byte, 10))
	search := NewSearch(NewValidator(1024))

	tests := []struct {
		name string
		dir  string
		want errors.ErrorType
	}{
		{"empty directory name", "", errors.ErrorTypeInvalidInput},
		{"missing directory", filepath.Join(dir, "absent"), errors.ErrorTypeFileNotFound},
		{"file instead of directory", file, errors.ErrorTypeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := search.Find(context.Background(), tt.dir, "", 0)
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.TypeOf(err))
		})
	}
}

func TestSearch_FindCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.pdf", make([]byte, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSearch(NewValidator(1024)).Find(ctx, dir, "", 0)
	assert.Error(t, err)
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		filename string
		query    string
		want     bool
	}{
		{"report.pdf", "", true},
		{"Jane_Doe_Grade3.pdf", "jane", true},
		{"Jane_Doe_Grade3.pdf", "doe grade", true},
		{"Jane_Doe_Grade3.pdf", "grade4", false},
		{"Jane_Doe_Grade3.pdf", "pdf", false},
		{"spring[2024].pdf", "2024", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesQuery(tt.filename, tt.query))
		})
	}
}

func TestSplitIntoWords(t *testing.T) {
	assert.Equal(t, []string{"grade", "3", "smith", "retake"}, splitIntoWords("Grade-3_Smith (Retake)"))
	assert.Empty(t, splitIntoWords("__--"))
}
