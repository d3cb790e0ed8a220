package extraction

import (
	"fmt"

	"github.com/a3tai/score-report-reader/internal/layout"
)

// Default extraction settings
const (
	defaultImageCacheSize = 256
	defaultMaxFormDepth   = 8

	// Letter size, used when a page carries no usable MediaBox.
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// Options tunes extraction.
type Options struct {
	// MaxRasterSize skips pixel decoding for images placed larger than
	// this on the page, in page units. Zero decodes every image.
	MaxRasterSize float64
	// ImageCacheSize bounds the decoded images kept per document.
	ImageCacheSize int
	// MaxFormDepth bounds nested form XObjects.
	MaxFormDepth int
}

// DefaultOptions returns options that decode only mark-sized images.
func DefaultOptions() Options {
	return Options{
		MaxRasterSize:  50,
		ImageCacheSize: defaultImageCacheSize,
		MaxFormDepth:   defaultMaxFormDepth,
	}
}

// PageError records a page that could not be extracted.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }
func (e *PageError) Unwrap() error { return e.Err }

// Document is the extracted content of one file. Pages holds every page
// that could be read, in physical order.
type Document struct {
	NumPages   int           `json:"num_pages"`
	Pages      []layout.Page `json:"pages"`
	PageErrors []PageError   `json:"-"`
}

// Page returns the extracted page with the given 1-based number.
func (d *Document) Page(num int) (layout.Page, bool) {
	for _, p := range d.Pages {
		if p.Number == num {
			return p, true
		}
	}
	return layout.Page{}, false
}
