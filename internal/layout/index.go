package layout

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Line is a visual line of text: runs sharing a baseline band, ordered
// left to right.
type Line struct {
	Text string    `json:"text"`
	Box  Rect      `json:"box"`
	Runs []TextRun `json:"-"`
}

// Column describes where outcome marks are expected on a page.
type Column struct {
	// XMin is the leftmost horizontal start accepted for a mark.
	XMin float64 `json:"x_min"`
	// Anchor is the expected horizontal center of a mark.
	Anchor float64 `json:"anchor"`
	// Header is the text that located the column; empty for the
	// page-fraction fallback.
	Header     string `json:"header,omitempty"`
	Discovered bool   `json:"discovered"`
}

// GlyphFilter reports whether a text run should be indexed as a glyph mark.
type GlyphFilter func(TextRun) bool

// Index associates a page's text runs with its mark-capable primitives.
type Index struct {
	page       Page
	primitives []Primitive
	lines      []Line
}

// NewIndex builds the index for page. Text runs accepted by glyphs are
// indexed as *Glyph primitives alongside the page's graphics; glyphs may
// be nil.
func NewIndex(page Page, glyphs GlyphFilter) *Index {
	ix := &Index{page: page}
	ix.primitives = make([]Primitive, 0, len(page.Graphics))
	if glyphs != nil {
		for _, run := range page.Text {
			if glyphs(run) {
				ix.primitives = append(ix.primitives, &Glyph{Run: run})
			}
		}
	}
	ix.primitives = append(ix.primitives, page.Graphics...)
	ix.lines = groupLines(page.Text)
	return ix
}

// Page returns the indexed page.
func (ix *Index) Page() Page { return ix.page }

// Primitives returns every indexed primitive, glyphs first.
func (ix *Index) Primitives() []Primitive { return ix.primitives }

// Lines returns the page text grouped into visual lines, top to bottom.
func (ix *Index) Lines() []Line { return ix.lines }

// PrimitivesNear returns the primitives whose horizontal start is at least
// xMin and whose vertical center lies within yTol of yCenter, ordered by
// ascending vertical distance. Equal distances keep index order.
func (ix *Index) PrimitivesNear(yCenter, yTol, xMin float64) []Primitive {
	type hit struct {
		p Primitive
		d float64
	}
	var hits []hit
	for _, p := range ix.primitives {
		b := p.Bounds()
		if b.X0 < xMin {
			continue
		}
		d := math.Abs(b.CenterY() - yCenter)
		if d > yTol {
			continue
		}
		hits = append(hits, hit{p: p, d: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })
	out := make([]Primitive, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

// ColumnRule controls outcome-column discovery.
type ColumnRule struct {
	// Headers match the column header text, tried against single runs
	// first and then whole lines.
	Headers []*regexp.Regexp
	// MinFraction is the leftmost page fraction a header may start at.
	MinFraction float64
	// Slack widens the column to the left of the header start.
	Slack float64
	// FallbackFraction places the column start when no header is found.
	FallbackFraction float64
}

// OutcomeColumn locates the outcome column from its header text. When no
// header matches, the column falls back to the right part of the page
// starting at FallbackFraction of the width and Discovered is false.
func (ix *Index) OutcomeColumn(rule ColumnRule) Column {
	minX := rule.MinFraction * ix.page.Width
	try := func(text string, box Rect) (Column, bool) {
		if box.X0 < minX {
			return Column{}, false
		}
		for _, re := range rule.Headers {
			if re.MatchString(text) {
				return Column{
					XMin:       box.X0 - rule.Slack,
					Anchor:     box.CenterX(),
					Header:     strings.TrimSpace(text),
					Discovered: true,
				}, true
			}
		}
		return Column{}, false
	}
	for _, run := range ix.page.Text {
		if col, ok := try(run.Text, run.Box); ok {
			return col
		}
	}
	for _, line := range ix.lines {
		if col, ok := try(line.Text, line.Box); ok {
			return col
		}
	}
	xMin := rule.FallbackFraction * ix.page.Width
	return Column{XMin: xMin, Anchor: (xMin + ix.page.Width) / 2}
}

// groupLines clusters runs whose vertical centers fall within half the
// smaller run height of each other, then orders each line left to right.
func groupLines(runs []TextRun) []Line {
	sorted := make([]TextRun, 0, len(runs))
	for _, r := range runs {
		if strings.TrimSpace(r.Text) != "" {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.CenterY() != sorted[j].Box.CenterY() {
			return sorted[i].Box.CenterY() < sorted[j].Box.CenterY()
		}
		return sorted[i].Box.X0 < sorted[j].Box.X0
	})

	var lines []Line
	var cur []TextRun
	var curY, curH float64
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, buildLine(cur))
			cur = nil
		}
	}
	for _, r := range sorted {
		h := r.Box.Height()
		if len(cur) > 0 && math.Abs(r.Box.CenterY()-curY) <= math.Min(h, curH)/2 {
			cur = append(cur, r)
			continue
		}
		flush()
		cur = []TextRun{r}
		curY, curH = r.Box.CenterY(), h
	}
	flush()
	return lines
}

func buildLine(runs []TextRun) Line {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Box.X0 < runs[j].Box.X0 })
	var b strings.Builder
	var box Rect
	for i, r := range runs {
		if i > 0 {
			prev := runs[i-1]
			gap := r.Box.X0 - prev.Box.X1
			if gap > 0.15*math.Max(r.Size, prev.Size) && !strings.HasSuffix(prev.Text, " ") && !strings.HasPrefix(r.Text, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(r.Text)
		box = box.Union(r.Box)
	}
	return Line{Text: strings.Join(strings.Fields(b.String()), " "), Box: box, Runs: runs}
}
