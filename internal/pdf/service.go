package pdf

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/score-report-reader/internal/config"
	"github.com/a3tai/score-report-reader/internal/pdf/errors"
	"github.com/a3tai/score-report-reader/internal/pdf/extraction"
	"github.com/a3tai/score-report-reader/internal/pdf/security"
	"github.com/a3tai/score-report-reader/internal/report"
)

// Service handles score report operations by orchestrating the file
// checks, extraction and analysis components.
type Service struct {
	cfg       *config.Config
	engine    *extraction.Engine
	analyzer  *report.Analyzer
	validator *Validator
	search    *Search
	paths     *security.PathValidator
	info      *ServerInfo
	logger    *slog.Logger
	confine   bool
}

// Option configures a Service.
type Option func(*Service)

// WithConfinement rejects every path outside the configured directory and
// resolves relative paths against it. The MCP server runs confined; the
// CLI reads whatever the user names.
func WithConfinement() Option {
	return func(s *Service) { s.confine = true }
}

// NewService creates a new report service with all components
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	paths, err := security.NewPathValidator(cfg.PDFDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	analyzer, err := report.NewAnalyzer(cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("failed to compile parser configuration: %w", err)
	}

	engineOpts := extraction.DefaultOptions()
	engineOpts.MaxRasterSize = cfg.Parser.Raster.MaxSize
	engineOpts.ImageCacheSize = cfg.ImageCacheSize

	validator := NewValidator(cfg.MaxFileSize)
	s := &Service{
		cfg:       cfg,
		engine:    extraction.NewEngine(engineOpts, logger),
		analyzer:  analyzer,
		validator: validator,
		search:    NewSearch(validator),
		paths:     paths,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.info = NewServerInfo(s)
	return s, nil
}

// Analyzer returns the service's analyzer.
func (s *Service) Analyzer() *report.Analyzer { return s.analyzer }

// resolve turns a user supplied path into an absolute one, enforcing the
// directory confinement when enabled.
func (s *Service) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrorTypeInvalidInput, "path cannot be empty")
	}
	if s.confine {
		abs, err := s.paths.SanitizePath(path)
		if err != nil {
			return "", errors.Wrap(errors.ErrorTypeInvalidInput, err, "security validation failed").WithFile(path)
		}
		return abs, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot resolve path").WithFile(path)
	}
	return abs, nil
}

func (s *Service) resolveDir(dir string) (string, error) {
	if dir == "" {
		return s.paths.GetConfiguredDirectory(), nil
	}
	if s.confine {
		abs, err := s.paths.NormalizePath(dir)
		if err != nil {
			return "", errors.Wrap(errors.ErrorTypeInvalidInput, err, "security validation failed").WithFile(dir)
		}
		if err := s.paths.ValidateDirectory(abs); err != nil {
			return "", errors.Wrap(errors.ErrorTypeInvalidInput, err, "security validation failed").WithFile(dir)
		}
		return abs, nil
	}
	return s.resolve(dir)
}

// AnalyzeFile reads one report and runs the page pipeline over it. Pages
// that could not be extracted become page_failed diagnostics; the error
// return is reserved for files that could not be read at all.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*report.DocumentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.validator.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := s.engine.Extract(data)
	if err != nil {
		var pe *errors.PDFError
		if stderrors.As(err, &pe) && pe.FilePath == "" {
			pe.WithFile(path)
		}
		return nil, err
	}
	if len(doc.Pages) == 0 {
		return nil, errors.New(errors.ErrorTypeCorrupted, "none of %d pages could be read", doc.NumPages).WithFile(path)
	}

	res := s.analyzer.AnalyzeDocument(path, doc.Pages)
	res.Pages = doc.NumPages
	if err := recordPageErrors(path, &res, doc.PageErrors); err != nil {
		return nil, err
	}

	s.logger.Debug("document analyzed",
		"file", path,
		"pages", doc.NumPages,
		"students", len(res.Students),
		"rows", res.RowsFound,
		"marks", res.MarksMatched,
		"page_errors", len(doc.PageErrors))
	return &res, nil
}

// recordPageErrors turns recoverable page failures into page_failed
// diagnostics. Any other failure means the pages that were read cannot be
// trusted either, and fails the document.
func recordPageErrors(path string, res *report.DocumentResult, pageErrors []extraction.PageError) error {
	for _, pe := range pageErrors {
		t := errors.TypeOf(pe.Err)
		if !t.IsRecoverable() {
			return errors.Wrap(t, pe.Err, "page %d", pe.Page).WithFile(path).WithPage(pe.Page)
		}
	}
	for _, pe := range pageErrors {
		res.PageFailed(pe.Page, pe.Err)
	}
	return nil
}

type fileOutcome struct {
	res *report.DocumentResult
	err error
}

// AnalyzeBatch analyzes paths with bounded parallelism and merges the
// results in input order, so the output does not depend on which worker
// finishes first. A file that cannot be read is recorded and the batch
// carries on; only cancellation of ctx fails the whole run.
func (s *Service) AnalyzeBatch(ctx context.Context, paths []string) (*BatchResult, error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "no files to analyze")
	}

	runID := uuid.NewString()
	s.logger.Info("analyzing batch", "run_id", runID, "files", len(paths), "workers", s.cfg.Workers)

	outcomes := make([]fileOutcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.AnalyzeFile(gctx, path)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = fileOutcome{res: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s cancelled: %w", runID, err)
	}

	agg := report.NewAggregator()
	failures := errors.NewErrorCollection()
	out := &BatchResult{FileCount: len(paths)}
	for i, o := range outcomes {
		if o.err != nil {
			s.logger.Warn("file skipped", "run_id", runID, "file", paths[i], "error", o.err)
			agg.AddFailure(paths[i], o.err)
			failures.Add(paths[i], o.err)
			continue
		}
		agg.AddDocument(*o.res)
		out.PerFile = append(out.PerFile, *o.res)
	}
	for _, e := range failures.Errors {
		out.Errors = append(out.Errors, FileError{File: e.FilePath, Type: e.Type.String(), Message: e.Error()})
	}
	if failures.Len() > 0 {
		out.FailureSummary = failures.Summary()
		out.FailuresByType = make(map[string]int)
		for t, n := range failures.CountByType() {
			out.FailuresByType[t.String()] = n
		}
	}

	out.Result = agg.Result(runID)
	s.logger.Info("batch complete",
		"run_id", runID,
		"students", len(out.Students),
		"standards", len(out.Summary),
		"failed", failures.Len())
	return out, nil
}

// Analyze runs a batch over the files or directory named by req.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*BatchResult, error) {
	var paths []string
	if len(req.Files) > 0 {
		for _, f := range req.Files {
			p, err := s.resolve(f)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
	} else {
		dir, err := s.resolveDir(req.Directory)
		if err != nil {
			return nil, err
		}
		files, err := s.search.Find(ctx, dir, "", 0)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.New(errors.ErrorTypeInvalidInput, "no PDF files found in %s", dir)
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}

	res, err := s.AnalyzeBatch(ctx, paths)
	if err != nil {
		return nil, err
	}
	if !req.Filter.IsZero() {
		res.Filtered = res.Result.Filtered(req.Filter)
	}
	if !req.Rows {
		res.PerFile = nil
	}
	return res, nil
}

// Inspect extracts one report and returns the intermediate state of one
// page. Page 0 means the first page.
func (s *Service) Inspect(ctx context.Context, req InspectRequest) (*InspectResult, error) {
	path, err := s.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.validator.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.engine.Extract(data)
	if err != nil {
		return nil, err
	}

	num := req.Page
	if num == 0 {
		num = 1
	}
	if num < 0 || num > doc.NumPages {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "page %d out of range (document has %d pages)", num, doc.NumPages).WithFile(path)
	}
	page, ok := doc.Page(num)
	if !ok {
		for _, pe := range doc.PageErrors {
			if pe.Page == num {
				return nil, pe.Err
			}
		}
		return nil, errors.New(errors.ErrorTypePageExtraction, "page could not be read").WithFile(path).WithPage(num)
	}

	insp := s.analyzer.InspectPage(page)
	return &InspectResult{Path: path, NumPages: doc.NumPages, Page: &insp}, nil
}

// List finds the reports in a directory, optionally validating each.
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	dir, err := s.resolveDir(req.Directory)
	if err != nil {
		return nil, err
	}
	files, err := s.search.Find(ctx, dir, req.Query, 0)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []FileInfo{}
	}
	// the directory was just rescanned; server info should not lag behind
	s.info.invalidate(dir)

	res := &ListResult{
		Files:       files,
		TotalCount:  len(files),
		Directory:   dir,
		SearchQuery: req.Query,
	}
	if !req.Validate {
		return res, nil
	}

	res.Validation = make([]*ValidationResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Validation[i] = s.validator.ValidateFile(f.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate runs the structural check on one file.
func (s *Service) Validate(path string) (*ValidationResult, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return s.validator.ValidateFile(abs), nil
}

// ServerInfo returns server information and usage guidance.
func (s *Service) ServerInfo(ctx context.Context) *ServerInfoResult {
	return s.info.Get(ctx)
}

// MaxFileSize returns the maximum file size limit
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}
