// Package calibrate checks classifier output against hand-labeled rows.
package calibrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/a3tai/score-report-reader/internal/marks"
)

// Label is one row whose outcome was read off the page by a person.
type Label struct {
	File     string `toml:"file"`
	Page     int    `toml:"page"`
	Student  string `toml:"student"`
	Standard string `toml:"standard"`
	Expected string `toml:"expected"`

	outcome marks.Outcome
}

// Outcome returns the parsed expected outcome.
func (l Label) Outcome() marks.Outcome { return l.outcome }

// Manifest is a labeled calibration set.
//
//	[[label]]
//	file = "grade3/jane.pdf"
//	page = 2
//	student = "Jane Doe"
//	standard = "3.RC.1"
//	expected = "correct"
type Manifest struct {
	Labels []Label `toml:"label"`
	// Dir is the directory relative file paths are resolved against.
	Dir string `toml:"-"`
}

// LoadManifest reads and checks a TOML manifest. Relative file paths are
// resolved against the manifest's own directory.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	m.Dir = filepath.Dir(abs)
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseManifest decodes a manifest from TOML text. Relative paths resolve
// against dir.
func ParseManifest(data, dir string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	m.Dir = dir
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) normalize() error {
	if len(m.Labels) == 0 {
		return fmt.Errorf("manifest has no labels")
	}
	for i := range m.Labels {
		l := &m.Labels[i]
		if l.File == "" {
			return fmt.Errorf("label %d: file is required", i+1)
		}
		l.Standard = strings.TrimSpace(l.Standard)
		if l.Standard == "" {
			return fmt.Errorf("label %d: standard is required", i+1)
		}
		if l.Page < 0 {
			return fmt.Errorf("label %d: page must not be negative", i+1)
		}
		o, err := marks.ParseOutcome(l.Expected)
		if err != nil {
			return fmt.Errorf("label %d: %w", i+1, err)
		}
		l.outcome = o
		l.Student = strings.TrimSpace(l.Student)
		if !filepath.IsAbs(l.File) && m.Dir != "" {
			l.File = filepath.Join(m.Dir, l.File)
		}
	}
	return nil
}

// Files returns the distinct files the labels refer to, in first-seen
// order.
func (m *Manifest) Files() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range m.Labels {
		if !seen[l.File] {
			seen[l.File] = true
			out = append(out, l.File)
		}
	}
	return out
}
