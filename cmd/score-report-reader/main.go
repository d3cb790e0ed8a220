// Package main provides the CLI entrypoint for score-report-reader.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/a3tai/score-report-reader/internal/config"
	"github.com/a3tai/score-report-reader/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "score-report-reader",
		Short:         "Extract per-standard outcomes from standardized-test score report PDFs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	config.DefineFlags(rootCmd.PersistentFlags(), config.DefaultConfig())

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCalibrateCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// loadConfig layers defaults, config file, environment and the command's
// flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if version != "dev" {
		cfg.Version = version
	}
	return cfg, nil
}

// newLogger writes leveled text logs to w. stdout is never used: in stdio
// serve mode it carries the protocol.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads the configuration and builds the service every command
// shares.
func setup(cmd *cobra.Command, opts ...pdf.Option) (*config.Config, *pdf.Service, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())
	logger.Debug("configuration loaded", "config", cfg.String())

	service, err := pdf.NewService(cfg, logger, opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	return cfg, service, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Score Report Reader\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
