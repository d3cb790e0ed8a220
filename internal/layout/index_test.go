package layout

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(text string, x0, y0, x1, y1 float64) TextRun {
	return TextRun{Text: text, Box: Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}, Font: "Helvetica", Size: y1 - y0}
}

func vec(x0, y0, x1, y1 float64) *Vector {
	return &Vector{
		Box:      Rect{X0: x0, Y0: y0, X1: x1, Y1: y1},
		Segments: []Segment{{Kind: SegmentLine, From: Point{X: x0, Y: y0}, To: Point{X: x1, Y: y1}}},
	}
}

func TestRectHelpers(t *testing.T) {
	r := RectFromPoints(Point{X: 4, Y: 8}, Point{X: 1, Y: 2}, Point{X: 3, Y: 10})
	assert.Equal(t, Rect{X0: 1, Y0: 2, X1: 4, Y1: 10}, r)
	assert.Equal(t, 3.0, r.Width())
	assert.Equal(t, 8.0, r.Height())
	assert.Equal(t, 6.0, r.CenterY())
	assert.InDelta(t, 0.375, r.Aspect(), 1e-9)

	assert.Equal(t, Rect{}, RectFromPoints())
	assert.True(t, Rect{}.Empty())
	assert.Equal(t, 0.0, Rect{X1: 5}.Aspect())

	assert.Equal(t, r, Rect{}.Union(r))
	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 4, Y1: 10}, r.Union(Rect{X1: 2, Y1: 1}))
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "glyph", KindGlyph.String())
	assert.Equal(t, "vector", KindVector.String())
	assert.Equal(t, "raster", KindRaster.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, "curve", SegmentCurve.String())
	assert.Equal(t, "?", SegmentKind(42).String())
}

func TestPageVariants(t *testing.T) {
	v := vec(0, 0, 5, 5)
	r := &Raster{Box: Rect{X1: 5, Y1: 5}}
	p := Page{Graphics: []Primitive{v, r, vec(1, 1, 2, 2)}}
	assert.Len(t, p.Vectors(), 2)
	assert.Same(t, v, p.Vectors()[0])
	assert.Equal(t, []*Raster{r}, p.Rasters())
}

func TestNewIndex(t *testing.T) {
	page := Page{
		Number: 1,
		Width:  600,
		Height: 800,
		Text: []TextRun{
			run("RC|3.RC.1", 72, 100, 140, 110),
			run("4", 450, 100, 458, 110),
		},
		Graphics: []Primitive{vec(450, 130, 460, 140)},
	}

	t.Run("without glyph filter", func(t *testing.T) {
		ix := NewIndex(page, nil)
		require.Len(t, ix.Primitives(), 1)
		assert.Equal(t, KindVector, ix.Primitives()[0].Kind())
		assert.Equal(t, page.Number, ix.Page().Number)
	})

	t.Run("glyphs indexed first", func(t *testing.T) {
		ix := NewIndex(page, func(r TextRun) bool { return r.Text == "4" })
		require.Len(t, ix.Primitives(), 2)
		g, ok := ix.Primitives()[0].(*Glyph)
		require.True(t, ok)
		assert.Equal(t, "4", g.String())
		assert.Equal(t, page.Text[1].Box, g.Bounds())
	})
}

func TestPrimitivesNear(t *testing.T) {
	far := vec(450, 112, 460, 122)  // center 117
	near := vec(450, 100, 460, 110) // center 105
	left := vec(100, 100, 110, 110)
	tie := vec(470, 100, 480, 110)
	ix := NewIndex(Page{Graphics: []Primitive{far, near, left, tie}}, nil)

	got := ix.PrimitivesNear(105, 15, 400)
	assert.Equal(t, []Primitive{near, tie, far}, got)

	assert.Empty(t, ix.PrimitivesNear(105, 1, 500))
	assert.Equal(t, []Primitive{near, tie}, ix.PrimitivesNear(105, 5, 400))
}

func TestOutcomeColumn(t *testing.T) {
	rule := ColumnRule{
		Headers:          []*regexp.Regexp{regexp.MustCompile(`(?i)student\s+performance`)},
		MinFraction:      0.5,
		Slack:            12,
		FallbackFraction: 0.75,
	}

	tests := []struct {
		name string
		text []TextRun
		want Column
	}{
		{
			name: "header in one run",
			text: []TextRun{run("Student Performance", 430, 100, 530, 110)},
			want: Column{XMin: 418, Anchor: 480, Header: "Student Performance", Discovered: true},
		},
		{
			name: "header split over runs of one line",
			text: []TextRun{run("Student", 430, 100, 470, 110), run("Performance", 474, 100, 530, 110)},
			want: Column{XMin: 418, Anchor: 480, Header: "Student Performance", Discovered: true},
		},
		{
			name: "header too far left",
			text: []TextRun{run("Student Performance", 72, 100, 172, 110)},
			want: Column{XMin: 450, Anchor: 525},
		},
		{
			name: "no header",
			text: []TextRun{run("Standard", 72, 100, 120, 110)},
			want: Column{XMin: 450, Anchor: 525},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := NewIndex(Page{Width: 600, Height: 800, Text: tt.text}, nil)
			assert.Equal(t, tt.want, ix.OutcomeColumn(rule))
		})
	}
}

func TestLines(t *testing.T) {
	runs := []TextRun{
		run("Performance", 180, 100, 230, 110),
		run("Name:", 72, 60, 100, 72),
		run("Jane Doe", 104, 61, 150, 71),
		run("Level:", 234, 101, 260, 111),
		run("   ", 300, 100, 310, 110),
		run("Performance", 72, 100, 122, 110),
		run("Level:", 122, 100, 150, 110),
	}
	lines := NewIndex(Page{Text: runs}, nil).Lines()
	require.Len(t, lines, 2)

	assert.Equal(t, "Name: Jane Doe", lines[0].Text)
	assert.Equal(t, Rect{X0: 72, Y0: 60, X1: 150, Y1: 72}, lines[0].Box)

	// Adjacent runs with no gap are joined without a space.
	assert.Equal(t, "PerformanceLevel: Performance Level:", lines[1].Text)
	assert.Len(t, lines[1].Runs, 4)
}
