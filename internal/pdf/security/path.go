// Package security keeps file access inside the directory a server was
// started with.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines paths to one configured directory. Symlinks are
// resolved before the containment check, so a link inside the directory
// that points outside it is rejected.
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator for dir. The directory need not
// exist yet; until it does, every path is accepted.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{configuredDirectory: abs}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

func (v *PathValidator) rootExists() bool {
	_, err := os.Stat(v.configuredDirectory)
	return err == nil
}

// ValidatePath checks if a path is within the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	ok, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// IsPathWithinDirectory reports whether path, after cleaning and symlink
// resolution, is the configured directory or lies below it.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	if !v.rootExists() {
		return true, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	root, err := filepath.EvalSymlinks(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	// The lexical path must be inside, and so must whatever it resolves to.
	if !within(abs, v.configuredDirectory) && !within(abs, root) {
		return false, nil
	}
	return within(resolveExisting(abs), root), nil
}

// resolveExisting resolves symlinks in the longest existing prefix of
// path and appends the rest unchanged.
func resolveExisting(path string) string {
	rest := ""
	cur := path
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

func within(path, dir string) bool {
	path, dir = filepath.Clean(path), filepath.Clean(dir)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// NormalizePath returns an absolute path inside the configured directory.
// Relative paths are taken relative to that directory.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	abs := filepath.Clean(path)
	if err := v.ValidatePath(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// ValidateDirectory checks that dirPath is inside the configured
// directory and, when it exists, is a directory.
func (v *PathValidator) ValidateDirectory(dirPath string) error {
	if err := v.ValidatePath(dirPath); err != nil {
		return err
	}
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dirPath)
	}
	return nil
}

// SanitizePath strips NUL bytes and normalizes the path.
func (v *PathValidator) SanitizePath(path string) (string, error) {
	return v.NormalizePath(strings.ReplaceAll(path, "\x00", ""))
}
