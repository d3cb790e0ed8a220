package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DefineFlags(fs, DefaultConfig())
	DefineServerFlags(fs, DefaultConfig())
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != TransportStdio {
		t.Errorf("Load() Transport = %v, want %v", cfg.Transport, TransportStdio)
	}
	if cfg.Parser.RowSlackFraction != DefaultParserConfig().RowSlackFraction {
		t.Errorf("Load() RowSlackFraction = %v, want default", cfg.Parser.RowSlackFraction)
	}
	if len(cfg.Parser.GlyphRepertoires) != len(DefaultParserConfig().GlyphRepertoires) {
		t.Errorf("Load() kept %d glyph repertoires, want the defaults", len(cfg.Parser.GlyphRepertoires))
	}
	if !filepath.IsAbs(cfg.PDFDirectory) {
		t.Errorf("Load() PDFDirectory = %v, want an absolute path", cfg.PDFDirectory)
	}
}

func TestLoad_Flags(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name      string
		args      []string
		check     func(*testing.T, *Config)
		wantError string
	}{
		{
			name: "directory and logging",
			args: []string{"--dir", tempDir, "--log-level", "debug"},
			check: func(t *testing.T, c *Config) {
				if c.PDFDirectory != tempDir {
					t.Errorf("PDFDirectory = %v, want %v", c.PDFDirectory, tempDir)
				}
				if c.LogLevel != "debug" {
					t.Errorf("LogLevel = %v, want debug", c.LogLevel)
				}
			},
		},
		{
			name: "sse transport",
			args: []string{"--transport", "sse", "--host", "0.0.0.0", "--port", "9000"},
			check: func(t *testing.T, c *Config) {
				if !c.IsSSE() || c.Address() != "0.0.0.0:9000" {
					t.Errorf("got transport %v at %v", c.Transport, c.Address())
				}
			},
		},
		{
			name: "workers, size and row slack",
			args: []string{"--workers", "8", "--max-file-size", "1024", "--row-slack", "0.25"},
			check: func(t *testing.T, c *Config) {
				if c.Workers != 8 || c.MaxFileSize != 1024 || c.Parser.RowSlackFraction != 0.25 {
					t.Errorf("got workers=%d size=%d slack=%v", c.Workers, c.MaxFileSize, c.Parser.RowSlackFraction)
				}
			},
		},
		{
			name: "relative directory made absolute",
			args: []string{"--dir", "."},
			check: func(t *testing.T, c *Config) {
				if !filepath.IsAbs(c.PDFDirectory) {
					t.Errorf("PDFDirectory = %v, want absolute", c.PDFDirectory)
				}
			},
		},
		{
			name:      "invalid transport",
			args:      []string{"--transport", "http"},
			wantError: "transport must be either",
		},
		{
			name:      "invalid port",
			args:      []string{"--transport", "sse", "--port", "0"},
			wantError: "port must be between",
		},
		{
			name:      "invalid log level",
			args:      []string{"--log-level", "loud"},
			wantError: "invalid log level",
		},
		{
			name:      "invalid row slack",
			args:      []string{"--row-slack", "2"},
			wantError: "row slack fraction",
		},
		{
			name:      "missing config file",
			args:      []string{"--config", filepath.Join(tempDir, "absent.toml")},
			wantError: "reading config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newFlagSet(t, tt.args...))
			if tt.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantError) {
					t.Errorf("Load() error = %v, want containing %q", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("SCORE_REPORT_TRANSPORT", "sse")
	t.Setenv("SCORE_REPORT_HOST", "192.168.1.1")
	t.Setenv("SCORE_REPORT_PORT", "3000")
	t.Setenv("SCORE_REPORT_DIR", tempDir)
	t.Setenv("SCORE_REPORT_LOG_LEVEL", "warn")
	t.Setenv("SCORE_REPORT_MAX_FILE_SIZE", "200000000")
	t.Setenv("SCORE_REPORT_PARSER_ROW_SLACK_FRACTION", "0.3")
	t.Setenv("SCORE_REPORT_PARSER_VECTOR_MAX_SIZE", "25")

	cfg, err := Load(newFlagSet(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != TransportSSE {
		t.Errorf("Load() Transport = %v, want sse", cfg.Transport)
	}
	if cfg.Address() != "192.168.1.1:3000" {
		t.Errorf("Load() Address = %v, want 192.168.1.1:3000", cfg.Address())
	}
	if cfg.PDFDirectory != tempDir {
		t.Errorf("Load() PDFDirectory = %v, want %v", cfg.PDFDirectory, tempDir)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Load() LogLevel = %v, want warn", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 200000000 {
		t.Errorf("Load() MaxFileSize = %v, want 200000000", cfg.MaxFileSize)
	}
	if cfg.Parser.RowSlackFraction != 0.3 {
		t.Errorf("Load() RowSlackFraction = %v, want 0.3", cfg.Parser.RowSlackFraction)
	}
	if cfg.Parser.Vector.MaxSize != 25 {
		t.Errorf("Load() Vector.MaxSize = %v, want 25", cfg.Parser.Vector.MaxSize)
	}
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("SCORE_REPORT_TRANSPORT", "sse")
	t.Setenv("SCORE_REPORT_LOG_LEVEL", "warn")

	cfg, err := Load(newFlagSet(t, "--transport", "stdio", "--log-level", "error"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("Load() Transport = %v, want stdio (should override env)", cfg.Transport)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Load() LogLevel = %v, want error (should override env)", cfg.LogLevel)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "score-report.toml")
	content := `
log_level = "debug"
workers = 2

[parser]
row_key_patterns = ['\b(?P<code>\d+\.RL\.\d+)\b']
row_slack_fraction = 0.2

[parser.vector]
max_size = 20

[[parser.glyph_repertoires]]
name = "custom"
font = "MarkFont"
correct = "a"
incorrect = "b"
partial = "c"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlagSet(t, "--config", path, "--dir", tempDir, "--workers", "6"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug from file", cfg.LogLevel)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %v, want 6 from flag", cfg.Workers)
	}
	if len(cfg.Parser.RowKeyPatterns) != 1 || !strings.Contains(cfg.Parser.RowKeyPatterns[0], "RL") {
		t.Errorf("RowKeyPatterns = %v, want the file's single pattern", cfg.Parser.RowKeyPatterns)
	}
	if cfg.Parser.RowSlackFraction != 0.2 {
		t.Errorf("RowSlackFraction = %v, want 0.2", cfg.Parser.RowSlackFraction)
	}
	if cfg.Parser.Vector.MaxSize != 20 || cfg.Parser.Vector.MinSize != DefaultParserConfig().Vector.MinSize {
		t.Errorf("Vector = %+v, want max 20 and default min", cfg.Parser.Vector)
	}
	if len(cfg.Parser.AnnouncementPatterns) == 0 {
		t.Error("AnnouncementPatterns should keep the defaults")
	}

	want := Repertoire{Name: "custom", Font: "MarkFont", Correct: "a", Incorrect: "b", Partial: "c"}
	if len(cfg.Parser.GlyphRepertoires) != 1 || cfg.Parser.GlyphRepertoires[0] != want {
		t.Errorf("GlyphRepertoires = %+v, want [%+v]", cfg.Parser.GlyphRepertoires, want)
	}
}

func TestLoad_ConfigFileInvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[parser]\nlexile_patterns = ['(']\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(newFlagSet(t, "--config", path))
	if err == nil || !strings.Contains(err.Error(), "invalid lexile pattern") {
		t.Errorf("Load() error = %v, want invalid lexile pattern", err)
	}
}
