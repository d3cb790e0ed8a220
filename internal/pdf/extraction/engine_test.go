package extraction

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/score-report-reader/internal/layout"
	"github.com/a3tai/score-report-reader/internal/pdf/errors"
	"github.com/a3tai/score-report-reader/internal/pdf/pdftest"
)

func extract(t *testing.T, b *pdftest.Builder) *Document {
	t.Helper()
	doc, err := NewEngine(DefaultOptions(), nil).Extract(b.Bytes())
	require.NoError(t, err)
	require.Empty(t, doc.PageErrors)
	return doc
}

func findRun(page layout.Page, text string) (layout.TextRun, bool) {
	for _, r := range page.Text {
		if r.Text == text {
			return r, true
		}
	}
	return layout.TextRun{}, false
}

func TestEngine_Text(t *testing.T) {
	b := pdftest.New()
	b.Letter().
		Text("Helvetica", 12, 72, 100, "Name: Jane Doe").
		Text("ZapfDingbats", 10, 500, 200, "4")

	doc := extract(t, b)
	require.Equal(t, 1, doc.NumPages)
	page := doc.Pages[0]
	assert.Equal(t, 612.0, page.Width)
	assert.Equal(t, 792.0, page.Height)

	run, ok := findRun(page, "Name: Jane Doe")
	require.True(t, ok, "runs: %v", page.Text)
	assert.Equal(t, "Helvetica", run.Font)
	assert.InDelta(t, 12, run.Size, 1e-6)
	assert.InDelta(t, 72, run.Box.X0, 1e-6)
	assert.InDelta(t, 72+14*6, run.Box.X1, 1e-6)
	assert.InDelta(t, 100-0.8*12, run.Box.Y0, 1e-6)
	assert.InDelta(t, 100+0.2*12, run.Box.Y1, 1e-6)

	mark, ok := findRun(page, "4")
	require.True(t, ok)
	assert.Equal(t, "ZapfDingbats", mark.Font)
	assert.InDelta(t, 500, mark.Box.X0, 1e-6)
}

func TestEngine_TextArrays(t *testing.T) {
	tests := []struct {
		name string
		ops  string
		want []string
	}{
		{
			name: "small kerning stays in one word",
			ops:  "BT /F1 10 Tf 72 700 Td [(Hel) -50 (lo)] TJ ET",
			want: []string{"Hello"},
		},
		{
			name: "wide kerning becomes a space",
			ops:  "BT /F1 10 Tf 72 700 Td [(Hello) -300 (World)] TJ ET",
			want: []string{"Hello World"},
		},
		{
			name: "gap over an em splits runs",
			ops:  "BT /F1 10 Tf 72 700 Td [(RC|1.RC.1) -3000 (Mark)] TJ ET",
			want: []string{"RC|1.RC.1", "Mark"},
		},
		{
			name: "next line operators",
			ops:  "BT /F1 10 Tf 14 TL 72 700 Td (One) Tj T* (Two) Tj (Three) ' ET",
			want: []string{"One", "Two", "Three"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := pdftest.New()
			b.Letter().Text("Helvetica", 10, 10, 10, "x").Raw(tt.ops)

			page := extract(t, b).Pages[0]
			var got []string
			for _, r := range page.Text[1:] {
				got = append(got, r.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_NextLineMovesDown(t *testing.T) {
	b := pdftest.New()
	b.Letter().Text("Helvetica", 10, 10, 10, "x").
		Raw("BT /F1 10 Tf 14 TL 72 700 Td (One) Tj T* (Two) Tj ET")

	page := extract(t, b).Pages[0]
	one, _ := findRun(page, "One")
	two, _ := findRun(page, "Two")
	assert.InDelta(t, 14, two.Box.Y0-one.Box.Y0, 1e-6)
	assert.InDelta(t, one.Box.X0, two.Box.X0, 1e-6)
}

func TestEngine_Vectors(t *testing.T) {
	b := pdftest.New()
	b.Letter().
		Check(500, 100, 10).
		Cross(500, 130, 10).
		Circle(505, 165, 5).
		Rect(50, 50, 200, 1)

	page := extract(t, b).Pages[0]
	vs := page.Vectors()
	require.Len(t, vs, 4)

	check := vs[0]
	assert.InDelta(t, 500, check.Box.X0, 1e-6)
	assert.InDelta(t, 100, check.Box.Y0, 1e-6)
	assert.InDelta(t, 510, check.Box.X1, 1e-6)
	assert.InDelta(t, 110, check.Box.Y1, 1e-6)
	require.NotNil(t, check.Stroke)
	assert.Nil(t, check.Fill)
	assert.InDelta(t, 1.25, check.StrokeWidth, 1e-6)
	require.Len(t, check.Segments, 3)
	assert.Equal(t, layout.SegmentMove, check.Segments[0].Kind)
	assert.Equal(t, layout.SegmentLine, check.Segments[1].Kind)

	cross := vs[1]
	assert.Len(t, cross.Segments, 4)

	circle := vs[2]
	curves := 0
	for _, s := range circle.Segments {
		if s.Kind == layout.SegmentCurve {
			curves++
		}
	}
	assert.Equal(t, 4, curves)
	assert.InDelta(t, 10, circle.Box.Width(), 1e-6)
	assert.InDelta(t, 10, circle.Box.Height(), 1e-6)

	rule := vs[3]
	require.NotNil(t, rule.Fill)
	assert.InDelta(t, 200, rule.Box.Width(), 1e-6)
	assert.InDelta(t, 50, rule.Box.Y0, 1e-6)
}

func TestEngine_TransformedPath(t *testing.T) {
	b := pdftest.New()
	b.Letter().Raw("q 2 0 0 2 100 100 cm 1 w 0 0 m 5 5 l S Q 0 0 m 1 1 l S")

	vs := extract(t, b).Pages[0].Vectors()
	require.Len(t, vs, 2)
	assert.InDelta(t, 100, vs[0].Box.X0, 1e-6)
	assert.InDelta(t, 110, vs[0].Box.X1, 1e-6)
	assert.InDelta(t, 792-110, vs[0].Box.Y0, 1e-6)
	assert.InDelta(t, 2, vs[0].StrokeWidth, 1e-6)
	// restored by Q
	assert.InDelta(t, 0, vs[1].Box.X0, 1e-6)
	assert.InDelta(t, 1, vs[1].StrokeWidth, 1e-6)
}

func checkerboard(n int) []byte {
	pix := make([]byte, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if (x+y)%2 == 0 {
				pix[y*n+x] = 0xFF
			}
		}
	}
	return pix
}

func TestEngine_Images(t *testing.T) {
	for _, flate := range []bool{false, true} {
		name := "raw"
		if flate {
			name = "flate"
		}
		t.Run(name, func(t *testing.T) {
			b := pdftest.New()
			b.Letter().
				GrayImage(400, 200, 10, 10, 4, 4, checkerboard(4), flate).
				GrayImage(50, 300, 300, 200, 4, 4, checkerboard(4), flate)

			rs := extract(t, b).Pages[0].Rasters()
			require.Len(t, rs, 2)

			small := rs[0]
			assert.Equal(t, "Im1", small.Name)
			assert.Equal(t, 4, small.PixelWidth)
			assert.InDelta(t, 400, small.Box.X0, 1e-6)
			assert.InDelta(t, 200, small.Box.Y0, 1e-6)
			assert.InDelta(t, 210, small.Box.Y1, 1e-6)
			require.NotNil(t, small.Image)
			assert.Equal(t, 4, small.Image.Bounds().Dx())
			r, _, _, _ := small.Image.At(0, 0).RGBA()
			assert.Equal(t, uint32(0xFFFF), r)
			r, _, _, _ = small.Image.At(1, 0).RGBA()
			assert.Equal(t, uint32(0), r)

			// placed too large to be a mark
			assert.Nil(t, rs[1].Image)
		})
	}
}

func TestEngine_InlineImages(t *testing.T) {
	for _, length := range []bool{false, true} {
		name := "scanned"
		if length {
			name = "with length"
		}
		t.Run(name, func(t *testing.T) {
			// samples that read as an unbalanced string if tokenized
			pix := []byte{'(', 0, 255, '(', 0, 255, '(', 0, 255}
			b := pdftest.New()
			b.Letter().
				InlineGrayImage(400, 200, 10, 10, 3, 3, pix, length).
				Text("Helvetica", 10, 72, 240, "RC|3.RC.1").
				Text("ZapfDingbats", 10, 450, 240, "4")

			page := extract(t, b).Pages[0]
			rs := page.Rasters()
			require.Len(t, rs, 1)
			r := rs[0]
			assert.Equal(t, "inline", r.Name)
			assert.Equal(t, 3, r.PixelWidth)
			assert.InDelta(t, 400, r.Box.X0, 1e-6)
			assert.InDelta(t, 200, r.Box.Y0, 1e-6)
			assert.InDelta(t, 210, r.Box.Y1, 1e-6)
			require.NotNil(t, r.Image)
			g, _, _, _ := r.Image.At(1, 0).RGBA()
			assert.Equal(t, uint32(0), g)
			g, _, _, _ = r.Image.At(2, 2).RGBA()
			assert.Equal(t, uint32(0xFFFF), g)

			_, ok := findRun(page, "RC|3.RC.1")
			assert.True(t, ok, "text after the image is kept")
			assert.Len(t, page.Text, 2)
		})
	}
}

func TestEngine_UnreadableContentFailsPage(t *testing.T) {
	tests := []struct {
		name string
		ops  string
	}{
		{"inline image without EI", "BI /W 2 /H 2 /CS /G /BPC 8 ID \x00(\x00\x00 BT /F1 10 Tf (lost) Tj ET"},
		{"inline image without size", "BI /CS /G /BPC 8 ID \x00\x00 EI"},
		{"unbalanced string", "BT /F1 10 Tf (lost Tj ET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := pdftest.New()
			b.Letter().Text("Helvetica", 10, 72, 72, "first")
			b.Letter().Raw(tt.ops)

			doc, err := NewEngine(DefaultOptions(), nil).Extract(b.Bytes())
			require.NoError(t, err)
			require.Len(t, doc.Pages, 1)
			assert.Equal(t, 1, doc.Pages[0].Number)

			require.Len(t, doc.PageErrors, 1)
			pe := doc.PageErrors[0]
			assert.Equal(t, 2, pe.Page)
			assert.Equal(t, errors.ErrorTypePageExtraction, errors.TypeOf(pe.Err))
			assert.True(t, errors.TypeOf(pe.Err).IsRecoverable())
		})
	}
}

func TestEngine_Form(t *testing.T) {
	b := pdftest.New()
	b.Letter().
		Text("Helvetica", 10, 10, 10, "x").
		Form(10, 0, "BT /F1 10 Tf 100 500 Td (Inside) Tj ET")

	page := extract(t, b).Pages[0]
	run, ok := findRun(page, "Inside")
	require.True(t, ok)
	assert.InDelta(t, 110, run.Box.X0, 1e-6)
	assert.InDelta(t, 792-500+2, run.Box.Y1, 1e-6)
}

func TestEngine_MultiplePages(t *testing.T) {
	b := pdftest.New()
	for i := 0; i < 3; i++ {
		b.Letter().Text("Helvetica", 10, 72, 72, strings.Repeat("p", i+1))
	}
	doc := extract(t, b)
	require.Len(t, doc.Pages, 3)
	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Number)
		_, ok := findRun(p, strings.Repeat("p", i+1))
		assert.True(t, ok)
	}
	_, ok := doc.Page(2)
	assert.True(t, ok)
	_, ok = doc.Page(9)
	assert.False(t, ok)
}

func TestEngine_Errors(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)

	tests := []struct {
		name string
		run  func() error
		want errors.ErrorType
	}{
		{
			name: "not a pdf",
			run: func() error {
				_, err := e.Extract([]byte("just some text, not a document"))
				return err
			},
			want: errors.ErrorTypeNotPDF,
		},
		{
			name: "truncated pdf",
			run: func() error {
				data := pdftest.New().Bytes()
				_, err := e.Extract(data[:len(data)/2])
				return err
			},
			want: errors.ErrorTypeNotPDF,
		},
		{
			name: "missing file",
			run: func() error {
				_, err := e.ExtractFile(filepath.Join(t.TempDir(), "absent.pdf"))
				return err
			},
			want: errors.ErrorTypeFileNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.TypeOf(err))
		})
	}
}

func TestEngine_ExtractFile(t *testing.T) {
	b := pdftest.New()
	b.Letter().Text("Helvetica", 12, 72, 72, "RC|1.RC.1")
	path, err := b.WriteFile(t.TempDir(), "report.pdf")
	require.NoError(t, err)

	doc, err := NewEngine(DefaultOptions(), nil).ExtractFile(path)
	require.NoError(t, err)
	_, ok := findRun(doc.Pages[0], "RC|1.RC.1")
	assert.True(t, ok)
}
