package pdf

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/a3tai/score-report-reader/internal/pdf/errors"
)

// Search discovers report files under a directory.
type Search struct {
	validator *Validator
}

// NewSearch creates a new report search handler with the specified constraints
func NewSearch(validator *Validator) *Search {
	return &Search{validator: validator}
}

// Find walks directory and returns every PDF that passes the cheap file
// checks and matches query, sorted by path. Hidden directories are
// skipped. A positive limit stops the walk early.
func (s *Search) Find(ctx context.Context, directory, query string, limit int) ([]FileInfo, error) {
	if directory == "" {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "directory cannot be empty")
	}

	absDirectory, err := filepath.Abs(directory)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "failed to resolve directory path")
	}
	info, err := os.Stat(absDirectory)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrorTypeFileNotFound, "directory does not exist: %s", directory)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot access directory")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "not a directory: %s", directory)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var files []FileInfo

	err = filepath.WalkDir(absDirectory, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Continue walking even if we encounter an error with a specific file
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absDirectory {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinked files may point anywhere; only regular files are listed.
		if !d.Type().IsRegular() || !isPDFFile(d.Name()) {
			return nil
		}

		if limit > 0 && len(files) >= limit {
			return filepath.SkipAll
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if err := s.validator.ValidateFileInfo(path, fi); err != nil {
			return nil
		}
		if query != "" && !matchesQuery(fi.Name(), query) {
			return nil
		}

		files = append(files, newFileInfo(path, fi))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "error walking directory")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func newFileInfo(path string, fi os.FileInfo) FileInfo {
	return FileInfo{
		Path:         path,
		Name:         fi.Name(),
		Size:         fi.Size(),
		SizeHuman:    humanize.IBytes(uint64(fi.Size())),
		ModifiedTime: fi.ModTime().Format("2006-01-02 15:04:05"),
	}
}

// isPDFFile checks if a file has a PDF extension
func isPDFFile(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// matchesQuery performs fuzzy matching on the filename. query must already
// be lower case.
func matchesQuery(filename, query string) bool {
	if query == "" {
		return true
	}

	name := strings.TrimSuffix(strings.ToLower(filename), ".pdf")
	if strings.Contains(name, query) {
		return true
	}

	// Every query word must appear inside some filename word.
	words := splitIntoWords(name)
	for _, q := range splitIntoWords(query) {
		found := false
		for _, w := range words {
			if strings.Contains(w, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// splitIntoWords splits a string into words using common separators
func splitIntoWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch r {
		case ' ', '_', '-', '.', '(', ')', '[', ']':
			return true
		}
		return false
	})
}
