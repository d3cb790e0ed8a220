package marks

import (
	"github.com/a3tai/score-report-reader/internal/layout"
)

// Classifier dispatches a primitive to the variant that understands it.
// Classification never fails: anything without a confident signal is
// Unknown.
type Classifier struct {
	Glyph  *GlyphClassifier
	Vector VectorClassifier
	Raster RasterClassifier
}

// Classify returns the outcome for p. A nil primitive is Unknown.
func (c *Classifier) Classify(p layout.Primitive) Outcome {
	switch v := p.(type) {
	case *layout.Glyph:
		if c.Glyph == nil {
			return Unknown
		}
		return c.Glyph.Classify(v)
	case *layout.Vector:
		return c.Vector.Classify(v)
	case *layout.Raster:
		return c.Raster.Classify(v)
	}
	return Unknown
}

// Accepts reports whether p passes its variant's pre-filter and so may be
// considered as a row's mark at all.
func (c *Classifier) Accepts(p layout.Primitive) bool {
	switch v := p.(type) {
	case *layout.Glyph:
		return c.Glyph != nil && c.Glyph.Classify(v) != Unknown
	case *layout.Vector:
		return c.Vector.Accepts(v) && !onlyRects(v)
	case *layout.Raster:
		return c.Raster.Accepts(v)
	}
	return false
}

// ForPage returns a classifier tuned to one page: the vector envelope
// learns the page's typical mark size and the raster filter is bound to
// the outcome column.
func (c *Classifier) ForPage(page layout.Page, col layout.Column) *Classifier {
	out := *c
	out.Vector = c.Vector.Learn(page.Vectors(), col.XMin)
	out.Raster.ColumnXMin = col.XMin
	return &out
}

// GlyphFilter returns the filter used to index glyph marks, or nil when no
// glyph repertoires are configured.
func (c *Classifier) GlyphFilter() layout.GlyphFilter {
	if c.Glyph == nil {
		return nil
	}
	return c.Glyph.IsMark
}
