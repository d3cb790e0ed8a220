package marks

import (
	"strings"

	"github.com/a3tai/score-report-reader/internal/layout"
)

// Repertoire is one family of glyph marks. Font restricts the repertoire
// to runs whose font name contains it (case-insensitive); an empty Font
// applies to every font. Each outcome set is a string of runes.
type Repertoire struct {
	Name      string
	Font      string
	Correct   string
	Incorrect string
	Partial   string
}

func (r Repertoire) appliesTo(font string) bool {
	return r.Font == "" || strings.Contains(strings.ToLower(font), strings.ToLower(r.Font))
}

func (r Repertoire) lookup(ch rune) Outcome {
	switch {
	case strings.ContainsRune(r.Correct, ch):
		return Correct
	case strings.ContainsRune(r.Incorrect, ch):
		return Incorrect
	case strings.ContainsRune(r.Partial, ch):
		return Partial
	}
	return Unknown
}

// GlyphClassifier maps mark characters to outcomes through a set of
// repertoires, tried in order.
type GlyphClassifier struct {
	repertoires []Repertoire
}

func NewGlyphClassifier(repertoires []Repertoire) *GlyphClassifier {
	return &GlyphClassifier{repertoires: append([]Repertoire(nil), repertoires...)}
}

// Classify returns the outcome of the first repertoire that knows the
// glyph's character for its font.
func (c *GlyphClassifier) Classify(g *layout.Glyph) Outcome {
	if g == nil {
		return Unknown
	}
	ch, ok := singleRune(g.Run.Text)
	if !ok {
		return Unknown
	}
	for _, r := range c.repertoires {
		if !r.appliesTo(g.Run.Font) {
			continue
		}
		if o := r.lookup(ch); o != Unknown {
			return o
		}
	}
	return Unknown
}

// IsMark reports whether run is a single character known to any
// repertoire applying to its font. It is the glyph filter used when
// indexing a page.
func (c *GlyphClassifier) IsMark(run layout.TextRun) bool {
	return c.Classify(&layout.Glyph{Run: run}) != Unknown
}

func singleRune(s string) (rune, bool) {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, false
	}
	return runes[0], true
}
