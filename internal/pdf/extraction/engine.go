package extraction

import (
	stderrors "errors"
	"io"
	"log/slog"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/score-report-reader/internal/layout"
	"github.com/a3tai/score-report-reader/internal/pdf/errors"
)

// Engine turns PDF bytes into layout pages: positioned text runs, vector
// paths and image placements.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates a new extraction engine
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if opts.ImageCacheSize <= 0 {
		opts.ImageCacheSize = defaultImageCacheSize
	}
	if opts.MaxFormDepth <= 0 {
		opts.MaxFormDepth = defaultMaxFormDepth
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: opts, logger: logger}
}

// ExtractFile reads the whole file and extracts it. The file is closed
// before extraction starts.
func (e *Engine) ExtractFile(path string) (*Document, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	doc, err := e.Extract(data)
	if err != nil {
		var pe *errors.PDFError
		if stderrors.As(err, &pe) {
			pe.WithFile(path)
		}
		return nil, err
	}
	return doc, nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrorTypeFileNotFound, err, "file does not exist").WithFile(path)
		}
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot open file").WithFile(path)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot read file").WithFile(path)
	}
	return data, nil
}

// Extract parses data and extracts every page in order. A page that fails
// is recorded in PageErrors and skipped; only a document that cannot be
// opened at all returns an error.
func (e *Engine) Extract(data []byte) (*Document, error) {
	r, err := errors.OpenReader(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	err = errors.Guard(errors.ErrorTypeCorrupted, func() error {
		doc.NumPages = r.NumPage()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if doc.NumPages <= 0 {
		return nil, errors.New(errors.ErrorTypeCorrupted, "document has no pages")
	}

	images := newImageSource(data, !r.Trailer().Key("Encrypt").IsNull(), e.opts.ImageCacheSize, e.logger)
	for num := 1; num <= doc.NumPages; num++ {
		page, err := e.extractPage(r, num, images)
		if err != nil {
			e.logger.Debug("page extraction failed", "page", num, "error", err)
			doc.PageErrors = append(doc.PageErrors, PageError{Page: num, Err: err})
			continue
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// extractPage extracts one page with panic recovery, so a malformed
// content stream loses only that page.
func (e *Engine) extractPage(r *pdf.Reader, num int, images *imageSource) (layout.Page, error) {
	var out layout.Page
	err := errors.Guard(errors.ErrorTypePageExtraction, func() error {
		page := r.Page(num)
		if page.V.IsNull() {
			return errors.New(errors.ErrorTypePageExtraction, "page not found").WithPage(num)
		}

		box := mediaBox(page)
		out = layout.Page{
			Number: num,
			Width:  box[2] - box[0],
			Height: box[3] - box[1],
		}

		in := &interpreter{
			opts:    e.opts,
			images:  images,
			pageNum: num,
			llx:     box[0],
			ury:     box[3],
			out:     &out,
			logger:  e.logger,
		}
		in.gs = newGState()
		contents := page.V.Key("Contents")
		if contents.IsNull() {
			return nil
		}
		if err := in.run(contents, page.Resources(), 0); err != nil {
			return errors.Wrap(errors.ErrorTypePageExtraction, err, "unreadable content stream")
		}
		return nil
	})
	if err != nil {
		var pe *errors.PDFError
		if stderrors.As(err, &pe) && pe.PageNumber == 0 {
			pe.WithPage(num)
		}
		return layout.Page{}, err
	}
	return out, nil
}

// mediaBox returns [llx lly urx ury], inherited from the page tree when the
// page has none of its own.
func mediaBox(page pdf.Page) [4]float64 {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		mb := v.Key("MediaBox")
		if mb.Kind() != pdf.Array || mb.Len() != 4 {
			continue
		}
		var b [4]float64
		for i := range b {
			b[i] = mb.Index(i).Float64()
		}
		if b[2] < b[0] {
			b[0], b[2] = b[2], b[0]
		}
		if b[3] < b[1] {
			b[1], b[3] = b[3], b[1]
		}
		if b[2]-b[0] > 0 && b[3]-b[1] > 0 {
			return b
		}
	}
	return [4]float64{0, 0, defaultPageWidth, defaultPageHeight}
}

// describe is used in debug logs for values the interpreter skips.
func describe(v pdf.Value) string {
	s := v.String()
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
