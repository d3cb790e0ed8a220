package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/a3tai/score-report-reader/internal/calibrate"
	"github.com/a3tai/score-report-reader/internal/config"
	"github.com/a3tai/score-report-reader/internal/mcp"
	"github.com/a3tai/score-report-reader/internal/pdf"
	"github.com/a3tai/score-report-reader/internal/render"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output prints v as JSON or through the text renderer.
func output[T any](cmd *cobra.Command, asJSON bool, v T, text func(T) string) error {
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text(v))
	return err
}

func newAnalyzeCmd() *cobra.Command {
	var (
		asJSON      bool
		rows        bool
		directory   string
		proficiency []string
		minLexile   int
		maxLexile   int
	)
	cmd := &cobra.Command{
		Use:   "analyze [file.pdf ...]",
		Short: "Tally per-standard outcomes for each student",
		Long: "Analyze the given reports, or every report under --directory (default: --dir), " +
			"and print the students, the per-standard summary and the diagnostic log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, service, _, err := setup(cmd)
			if err != nil {
				return err
			}

			req := pdf.AnalyzeRequest{Files: args, Directory: directory, Rows: rows}
			req.Filter.Proficiency = proficiency
			if cmd.Flags().Changed("min-lexile") {
				req.Filter.MinLexile = &minLexile
			}
			if cmd.Flags().Changed("max-lexile") {
				req.Filter.MaxLexile = &maxLexile
			}

			res, err := service.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			return output(cmd, asJSON, res, render.Batch)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&rows, "rows", false, "include every row outcome")
	cmd.Flags().StringVar(&directory, "directory", "", "analyze every report under this directory")
	cmd.Flags().StringSliceVar(&proficiency, "proficiency", nil, "filtered summary: proficiency categories to include")
	cmd.Flags().IntVar(&minLexile, "min-lexile", 0, "filtered summary: lowest Lexile lower bound")
	cmd.Flags().IntVar(&maxLexile, "max-lexile", 0, "filtered summary: highest Lexile lower bound")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		asJSON bool
		page   int
	)
	cmd := &cobra.Command{
		Use:   "inspect file.pdf",
		Short: "Show rows, outcome column and mark candidates of one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, service, _, err := setup(cmd)
			if err != nil {
				return err
			}
			res, err := service.Inspect(cmd.Context(), pdf.InspectRequest{Path: args[0], Page: page})
			if err != nil {
				return err
			}
			return output(cmd, asJSON, res, render.Inspection)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		asJSON    bool
		validate  bool
		directory string
	)
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "Find report PDFs, optionally filtered by a fuzzy filename query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, service, _, err := setup(cmd)
			if err != nil {
				return err
			}
			req := pdf.ListRequest{Directory: directory, Validate: validate}
			if len(args) == 1 {
				req.Query = args[0]
			}
			res, err := service.List(cmd.Context(), req)
			if err != nil {
				return err
			}
			return output(cmd, asJSON, res, render.Listing)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&validate, "validate", false, "run the structural check on every file")
	cmd.Flags().StringVar(&directory, "directory", "", "directory to search (default: --dir)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate file.pdf",
		Short: "Check that a file is a readable PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, service, _, err := setup(cmd)
			if err != nil {
				return err
			}
			res, err := service.Validate(args[0])
			if err != nil {
				return err
			}
			if err := output(cmd, asJSON, res, render.Validation); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%s is not a usable PDF: %s", res.Path, res.ErrorType)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newCalibrateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "calibrate manifest.toml",
		Short: "Score the mark classifier against hand-labeled rows",
		Long: "Read a TOML manifest of [[label]] entries (file, page, student, standard, expected), " +
			"analyze the files it names and print a confusion matrix per mark variant.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := calibrate.LoadManifest(args[0])
			if err != nil {
				return err
			}
			_, service, _, err := setup(cmd)
			if err != nil {
				return err
			}
			rep, err := calibrate.Evaluate(cmd.Context(), service, manifest)
			if err != nil {
				return err
			}
			return output(cmd, asJSON, rep, render.Calibration)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis tools over MCP (stdio or sse)",
		Long: "Start an MCP server exposing score_report_analyze, score_report_inspect, score_report_list, " +
			"score_report_validate and score_report_server_info. File access is confined to --dir.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, service, logger, err := setup(cmd, pdf.WithConfinement())
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(cfg, service, logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			if err := server.Run(cmd.Context()); err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	config.DefineServerFlags(cmd.Flags(), config.DefaultConfig())
	return cmd
}
