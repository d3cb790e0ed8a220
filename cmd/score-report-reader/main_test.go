package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/score-report-reader/internal/config"
	"github.com/a3tai/score-report-reader/internal/pdf/pdftest"
)

const testVersion = "1.2.3"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	b := pdftest.New()
	b.ReportPage("Jane Doe",
		pdftest.Row{Code: "3.RC.1", Mark: "check"},
		pdftest.Row{Code: "3.RC.2", Mark: "cross"},
		pdftest.Row{Code: "3.RC.3", Mark: "circle"})
	_, err := b.WriteFile(dir, "jane.pdf")
	require.NoError(t, err)

	b = pdftest.New()
	b.ReportPage("John Smith", pdftest.Row{Code: "3.RC.1", Mark: "cross"})
	_, err = b.WriteFile(dir, "john.pdf")
	require.NoError(t, err)
	return dir
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() { version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit }()

	version = testVersion
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	for _, want := range []string{
		"Score Report Reader",
		"Version: " + testVersion,
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		assert.Contains(t, out, want)
	}
}

func TestLoadConfigVersion(t *testing.T) {
	oldVersion := version
	defer func() { version = oldVersion }()

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--dir", t.TempDir()}))

	version = "dev"
	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Version, cfg.Version)

	version = testVersion
	cfg, err = loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, testVersion, cfg.Version)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()

	cfg.LogLevel = "warn"
	logger := newLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	cfg.LogLevel = "debug"
	newLogger(cfg, &buf).Debug("details")
	assert.Contains(t, buf.String(), "details")
}

func TestAnalyzeCmd(t *testing.T) {
	dir := writeFixtures(t)

	t.Run("directory text", func(t *testing.T) {
		out, _, err := execute(t, "analyze", "--dir", dir, "--log-level", "error")
		require.NoError(t, err)
		assert.Contains(t, out, "Analyzed 2 file(s)")
		assert.Contains(t, out, "Jane Doe")
		assert.Contains(t, out, "John Smith")
		assert.Contains(t, out, "3.RC.3")
	})

	t.Run("files json", func(t *testing.T) {
		out, _, err := execute(t, "analyze", "--json", "--log-level", "error",
			filepath.Join(dir, "jane.pdf"), filepath.Join(dir, "john.pdf"))
		require.NoError(t, err)

		var res struct {
			Summary map[string]struct {
				Correct   int `json:"correct"`
				Incorrect int `json:"incorrect"`
				Partial   int `json:"partial"`
			} `json:"summary"`
			FileCount int `json:"file_count"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 2, res.FileCount)
		assert.Equal(t, 1, res.Summary["3.RC.1"].Correct)
		assert.Equal(t, 1, res.Summary["3.RC.1"].Incorrect)
		assert.Equal(t, 1, res.Summary["3.RC.3"].Partial)
	})

	t.Run("filter", func(t *testing.T) {
		out, _, err := execute(t, "analyze", "--dir", dir, "--log-level", "error",
			"--proficiency", "Below Proficiency")
		require.NoError(t, err)
		assert.Contains(t, out, "Filtered standards (0)")
	})

	t.Run("no reports", func(t *testing.T) {
		_, _, err := execute(t, "analyze", "--dir", t.TempDir(), "--log-level", "error")
		assert.Error(t, err)
	})
}

func TestInspectCmd(t *testing.T) {
	dir := writeFixtures(t)

	out, _, err := execute(t, "inspect", "--log-level", "error", filepath.Join(dir, "jane.pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 1")
	assert.Contains(t, out, "Student Performance")

	_, _, err = execute(t, "inspect", "--page", "3", filepath.Join(dir, "jane.pdf"))
	assert.Error(t, err)

	_, _, err = execute(t, "inspect")
	assert.Error(t, err)
}

func TestListAndValidateCmd(t *testing.T) {
	dir := writeFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake.pdf"), []byte("not a pdf"), 0o644))

	out, _, err := execute(t, "list", "--dir", dir, "--log-level", "error", "jane")
	require.NoError(t, err)
	assert.Contains(t, out, "jane.pdf")
	assert.NotContains(t, out, "john.pdf")

	out, _, err = execute(t, "validate", "--log-level", "error", filepath.Join(dir, "john.pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: yes")

	out, _, err = execute(t, "validate", "--log-level", "error", filepath.Join(dir, "fake.pdf"))
	assert.Error(t, err)
	assert.Contains(t, out, "Valid: no")
}

func TestCalibrateCmd(t *testing.T) {
	dir := writeFixtures(t)
	manifest := strings.Join([]string{
		"[[label]]", `file = "jane.pdf"`, `student = "Jane Doe"`, `standard = "3.RC.1"`, `expected = "correct"`,
		"[[label]]", `file = "jane.pdf"`, `student = "Jane Doe"`, `standard = "3.RC.2"`, `expected = "incorrect"`,
		"[[label]]", `file = "jane.pdf"`, `student = "Jane Doe"`, `standard = "3.RC.3"`, `expected = "partial"`,
		"[[label]]", `file = "john.pdf"`, `student = "John Smith"`, `standard = "3.RC.1"`, `expected = "correct"`,
	}, "\n")
	path := filepath.Join(dir, "labels.toml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	out, _, err := execute(t, "calibrate", "--log-level", "error", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Overall: 3/4 labels agree (75.0%)")
	assert.Contains(t, out, "vector")
	assert.Contains(t, out, "expected correct, got incorrect")

	_, _, err = execute(t, "calibrate", filepath.Join(dir, "absent.toml"))
	assert.Error(t, err)
}

func TestServeCmdRejectsBadTransport(t *testing.T) {
	_, _, err := execute(t, "serve", "--dir", t.TempDir(), "--transport", "carrier-pigeon")
	assert.Error(t, err)
}
