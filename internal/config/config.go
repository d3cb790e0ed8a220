package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Transport constants
	TransportStdio = "stdio"
	TransportSSE   = "sse"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultWorkers        = 4
	DefaultImageCacheSize = 256

	// EnvPrefix is prepended to every environment override, e.g.
	// SCORE_REPORT_PARSER_ROW_SLACK_FRACTION.
	EnvPrefix = "SCORE_REPORT"
)

// Config holds all configuration for the score report reader
type Config struct {
	// Server configuration
	Transport string `mapstructure:"transport"` // "stdio" or "sse"
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`

	// Input configuration
	PDFDirectory   string `mapstructure:"dir"`
	MaxFileSize    int64  `mapstructure:"max_file_size"` // Maximum PDF file size in bytes
	Workers        int    `mapstructure:"workers"`
	ImageCacheSize int    `mapstructure:"image_cache_size"`

	// Application configuration
	Version    string `mapstructure:"-"`
	ServerName string `mapstructure:"-"`
	LogLevel   string `mapstructure:"log_level"`

	Parser ParserConfig `mapstructure:"parser"`
}

// ParserConfig holds every pattern set and tolerance the analyzer uses.
type ParserConfig struct {
	RowKeyPatterns        []string     `mapstructure:"row_key_patterns"`
	AnnouncementPatterns  []string     `mapstructure:"announcement_patterns"`
	LexilePatterns        []string     `mapstructure:"lexile_patterns"`
	ProficiencyPatterns   []string     `mapstructure:"proficiency_patterns"`
	OutcomeHeaderPatterns []string     `mapstructure:"outcome_header_patterns"`
	GlyphRepertoires      []Repertoire `mapstructure:"glyph_repertoires"`

	// RowSlackFraction widens each row band by this share of the row height.
	RowSlackFraction float64 `mapstructure:"row_slack_fraction"`
	// ColumnFallbackFraction is the outcome column start, as a share of
	// page width, used when no header is found.
	ColumnFallbackFraction float64 `mapstructure:"column_fallback_fraction"`
	// ColumnHeaderSlack moves the discovered column start left of the
	// header text, in page units.
	ColumnHeaderSlack float64 `mapstructure:"column_header_slack"`
	// MinHeaderFraction rejects header matches left of this share of the
	// page width.
	MinHeaderFraction float64 `mapstructure:"min_header_fraction"`

	Vector VectorConfig `mapstructure:"vector"`
	Raster RasterConfig `mapstructure:"raster"`
}

// Repertoire is one glyph set mapping characters to outcomes. Font limits
// it to fonts whose name contains the value; empty applies to all fonts.
type Repertoire struct {
	Name      string `mapstructure:"name" toml:"name"`
	Font      string `mapstructure:"font" toml:"font"`
	Correct   string `mapstructure:"correct" toml:"correct"`
	Incorrect string `mapstructure:"incorrect" toml:"incorrect"`
	Partial   string `mapstructure:"partial" toml:"partial"`
}

// VectorConfig is the size envelope for drawn marks, in page units.
type VectorConfig struct {
	MinSize          float64 `mapstructure:"min_size"`
	MaxSize          float64 `mapstructure:"max_size"`
	MinAspect        float64 `mapstructure:"min_aspect"`
	MaxAspect        float64 `mapstructure:"max_aspect"`
	TypicalTolerance float64 `mapstructure:"typical_tolerance"`
}

// RasterConfig is the pre-filter and grid for image marks.
type RasterConfig struct {
	MaxSize       float64 `mapstructure:"max_size"`
	MinAspect     float64 `mapstructure:"min_aspect"`
	MaxAspect     float64 `mapstructure:"max_aspect"`
	MinPixels     int     `mapstructure:"min_pixels"`
	DarkThreshold int     `mapstructure:"dark_threshold"`
	Grid          int     `mapstructure:"grid"`
}

// DefaultParserConfig returns the patterns and tolerances that fit the
// known report layouts.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		RowKeyPatterns: []string{
			`RC\|(?P<code>\d+\.RC\.\d+)`,
			`\b(?P<code>\d+\.RC\.\d+)\b`,
		},
		AnnouncementPatterns: []string{
			`(?:^|\W)(?P<exclude>(?:School|Teacher|District|Parent|Test|Corporation)\s+)?Name:\s*` +
				`(?P<name>[A-Z][A-Za-z'’-]+(?:\s+[A-Z]\.)?\s+[A-Z][A-Za-z'’-]+)`,
		},
		LexilePatterns: []string{
			`Lexile.*?(?P<low>\d+)L\s*[-–]\s*(?P<high>\d+)L`,
			`Lower\s+Limit:?\s*(?P<low>\d+)L`,
			`Upper\s+Limit:?\s*(?P<high>\d+)L`,
		},
		ProficiencyPatterns: []string{
			`Performance\s+Level:\s*(?P<level>(?:At|Above|Approaching|Below)\s+Proficiency)`,
		},
		OutcomeHeaderPatterns: []string{
			`(?i)student\s+performance`,
			`(?i)^\s*performance\s*$`,
		},
		GlyphRepertoires: []Repertoire{
			{Name: "unicode", Correct: "✓✔☑", Incorrect: "✗✘☒", Partial: "⊖⊘◐◑○◯"},
			{Name: "zapf-dingbats", Font: "ZapfDingbats", Correct: "34", Incorrect: "78", Partial: "lm"},
			{Name: "wingdings-2", Font: "Wingdings2", Correct: "P", Incorrect: "O"},
			{Name: "wingdings", Font: "Wingdings", Correct: "üþ", Incorrect: "ûý", Partial: "¡"},
		},
		RowSlackFraction:       0.15,
		ColumnFallbackFraction: 0.75,
		ColumnHeaderSlack:      12,
		MinHeaderFraction:      0.5,
		Vector: VectorConfig{
			MinSize:          4,
			MaxSize:          30,
			MinAspect:        0.5,
			MaxAspect:        2,
			TypicalTolerance: 2,
		},
		Raster: RasterConfig{
			MaxSize:       50,
			MinAspect:     0.5,
			MaxAspect:     2,
			MinPixels:     4,
			DarkThreshold: 128,
			Grid:          20,
		},
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Transport:      TransportStdio,
		Host:           DefaultHost,
		Port:           DefaultPort,
		PDFDirectory:   currentDir,
		MaxFileSize:    DefaultMaxFileSize,
		Workers:        DefaultWorkers,
		ImageCacheSize: DefaultImageCacheSize,
		Version:        "1.0.0",
		ServerName:     "score-report-reader",
		LogLevel:       DefaultLogLevel,
		Parser:         DefaultParserConfig(),
	}
}

// DefineFlags registers the command line flags shared by every command.
func DefineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("config", "", "Config file (yaml, toml or json)")
	fs.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.Int("workers", cfg.Workers, "Documents analyzed in parallel")
	fs.Float64("row-slack", cfg.Parser.RowSlackFraction, "Row band slack as a fraction of row height")
}

// DefineServerFlags registers the flags only the serve command needs.
func DefineServerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("transport", cfg.Transport, "MCP transport: 'stdio' or 'sse'")
	fs.String("host", cfg.Host, "Server host address (sse only)")
	fs.Int("port", cfg.Port, "Server port (sse only)")
}

// flagKeys maps flag names to their configuration keys.
var flagKeys = map[string]string{
	"dir":           "dir",
	"log-level":     "log_level",
	"max-file-size": "max_file_size",
	"workers":       "workers",
	"row-slack":     "parser.row_slack_fraction",
	"transport":     "transport",
	"host":          "host",
	"port":          "port",
}

// Load builds the configuration from defaults, an optional config file,
// SCORE_REPORT_* environment variables and the given flags, in increasing
// order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	setupViperEnvironment(v, cfg)
	bindFlagsToViper(v, fs)

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	if err := populateConfigFromViper(v, cfg); err != nil {
		return nil, err
	}

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("transport", cfg.Transport)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.PDFDirectory)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("max_file_size", cfg.MaxFileSize)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("image_cache_size", cfg.ImageCacheSize)

	p := cfg.Parser
	v.SetDefault("parser.row_key_patterns", p.RowKeyPatterns)
	v.SetDefault("parser.announcement_patterns", p.AnnouncementPatterns)
	v.SetDefault("parser.lexile_patterns", p.LexilePatterns)
	v.SetDefault("parser.proficiency_patterns", p.ProficiencyPatterns)
	v.SetDefault("parser.outcome_header_patterns", p.OutcomeHeaderPatterns)
	v.SetDefault("parser.row_slack_fraction", p.RowSlackFraction)
	v.SetDefault("parser.column_fallback_fraction", p.ColumnFallbackFraction)
	v.SetDefault("parser.column_header_slack", p.ColumnHeaderSlack)
	v.SetDefault("parser.min_header_fraction", p.MinHeaderFraction)
	v.SetDefault("parser.vector.min_size", p.Vector.MinSize)
	v.SetDefault("parser.vector.max_size", p.Vector.MaxSize)
	v.SetDefault("parser.vector.min_aspect", p.Vector.MinAspect)
	v.SetDefault("parser.vector.max_aspect", p.Vector.MaxAspect)
	v.SetDefault("parser.vector.typical_tolerance", p.Vector.TypicalTolerance)
	v.SetDefault("parser.raster.max_size", p.Raster.MaxSize)
	v.SetDefault("parser.raster.min_aspect", p.Raster.MinAspect)
	v.SetDefault("parser.raster.max_aspect", p.Raster.MaxAspect)
	v.SetDefault("parser.raster.min_pixels", p.Raster.MinPixels)
	v.SetDefault("parser.raster.dark_threshold", p.Raster.DarkThreshold)
	v.SetDefault("parser.raster.grid", p.Raster.Grid)
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) error {
	cfg.Transport = v.GetString("transport")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.PDFDirectory = v.GetString("dir")
	cfg.LogLevel = v.GetString("log_level")
	cfg.MaxFileSize = v.GetInt64("max_file_size")
	cfg.Workers = v.GetInt("workers")
	cfg.ImageCacheSize = v.GetInt("image_cache_size")

	p := &cfg.Parser
	p.RowKeyPatterns = v.GetStringSlice("parser.row_key_patterns")
	p.AnnouncementPatterns = v.GetStringSlice("parser.announcement_patterns")
	p.LexilePatterns = v.GetStringSlice("parser.lexile_patterns")
	p.ProficiencyPatterns = v.GetStringSlice("parser.proficiency_patterns")
	p.OutcomeHeaderPatterns = v.GetStringSlice("parser.outcome_header_patterns")
	p.RowSlackFraction = v.GetFloat64("parser.row_slack_fraction")
	p.ColumnFallbackFraction = v.GetFloat64("parser.column_fallback_fraction")
	p.ColumnHeaderSlack = v.GetFloat64("parser.column_header_slack")
	p.MinHeaderFraction = v.GetFloat64("parser.min_header_fraction")
	p.Vector = VectorConfig{
		MinSize:          v.GetFloat64("parser.vector.min_size"),
		MaxSize:          v.GetFloat64("parser.vector.max_size"),
		MinAspect:        v.GetFloat64("parser.vector.min_aspect"),
		MaxAspect:        v.GetFloat64("parser.vector.max_aspect"),
		TypicalTolerance: v.GetFloat64("parser.vector.typical_tolerance"),
	}
	p.Raster = RasterConfig{
		MaxSize:       v.GetFloat64("parser.raster.max_size"),
		MinAspect:     v.GetFloat64("parser.raster.min_aspect"),
		MaxAspect:     v.GetFloat64("parser.raster.max_aspect"),
		MinPixels:     v.GetInt("parser.raster.min_pixels"),
		DarkThreshold: v.GetInt("parser.raster.dark_threshold"),
		Grid:          v.GetInt("parser.raster.grid"),
	}

	// Repertoires are a list of tables and only come from a config file.
	if v.IsSet("parser.glyph_repertoires") {
		var reps []Repertoire
		if err := v.UnmarshalKey("parser.glyph_repertoires", &reps); err != nil {
			return fmt.Errorf("decoding glyph repertoires: %w", err)
		}
		p.GlyphRepertoires = reps
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Transport != TransportStdio && c.Transport != TransportSSE {
		return errors.New("transport must be either 'stdio' or 'sse'")
	}

	if c.Transport == TransportSSE && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}

	if c.ImageCacheSize <= 0 {
		return errors.New("image cache size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return c.Parser.Validate()
}

// Validate checks the parser patterns compile and the tolerances are sane.
func (p *ParserConfig) Validate() error {
	if len(p.RowKeyPatterns) == 0 {
		return errors.New("at least one row key pattern is required")
	}
	if len(p.AnnouncementPatterns) == 0 {
		return errors.New("at least one announcement pattern is required")
	}

	sets := []struct {
		name     string
		patterns []string
	}{
		{"row key", p.RowKeyPatterns},
		{"announcement", p.AnnouncementPatterns},
		{"lexile", p.LexilePatterns},
		{"proficiency", p.ProficiencyPatterns},
		{"outcome header", p.OutcomeHeaderPatterns},
	}
	for _, set := range sets {
		for _, pat := range set.patterns {
			if _, err := regexp.Compile(pat); err != nil {
				return fmt.Errorf("invalid %s pattern %q: %w", set.name, pat, err)
			}
		}
	}

	if p.RowSlackFraction <= 0 || p.RowSlackFraction > 1 {
		return fmt.Errorf("row slack fraction must be in (0, 1], got %g", p.RowSlackFraction)
	}
	if p.ColumnFallbackFraction < 0 || p.ColumnFallbackFraction >= 1 {
		return fmt.Errorf("column fallback fraction must be in [0, 1), got %g", p.ColumnFallbackFraction)
	}
	if p.MinHeaderFraction < 0 || p.MinHeaderFraction >= 1 {
		return fmt.Errorf("min header fraction must be in [0, 1), got %g", p.MinHeaderFraction)
	}

	if p.Vector.MinSize <= 0 || p.Vector.MaxSize <= p.Vector.MinSize {
		return fmt.Errorf("vector size envelope [%g, %g] is invalid", p.Vector.MinSize, p.Vector.MaxSize)
	}
	if p.Vector.MinAspect <= 0 || p.Vector.MaxAspect < p.Vector.MinAspect {
		return fmt.Errorf("vector aspect envelope [%g, %g] is invalid", p.Vector.MinAspect, p.Vector.MaxAspect)
	}
	// a factor below 1 would reject every mark, the typical one included
	if t := p.Vector.TypicalTolerance; t < 0 || (t > 0 && t < 1) {
		return fmt.Errorf("vector typical tolerance must be 0 (off) or at least 1, got %g", t)
	}
	if p.Raster.MaxSize <= 0 {
		return errors.New("raster max size must be positive")
	}
	if p.Raster.MinAspect <= 0 || p.Raster.MaxAspect < p.Raster.MinAspect {
		return fmt.Errorf("raster aspect envelope [%g, %g] is invalid", p.Raster.MinAspect, p.Raster.MaxAspect)
	}
	if p.Raster.MinPixels <= 0 {
		return fmt.Errorf("raster min pixels must be positive, got %d", p.Raster.MinPixels)
	}
	if p.Raster.DarkThreshold < 1 || p.Raster.DarkThreshold > 255 {
		return fmt.Errorf("raster dark threshold must be in [1, 255], got %d", p.Raster.DarkThreshold)
	}
	if p.Raster.Grid < 4 {
		return fmt.Errorf("raster grid must be at least 4, got %d", p.Raster.Grid)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Transport: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, Workers: %d}",
		c.Transport, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize, c.Workers)
}

// IsSSE returns true if the MCP server is served over HTTP server-sent events
func (c *Config) IsSSE() bool {
	return c.Transport == TransportSSE
}

// IsStdio returns true if the MCP server speaks over standard I/O
func (c *Config) IsStdio() bool {
	return c.Transport == TransportStdio
}
