package pdftest

import (
	"strconv"
	"strings"
)

// Row is one standard line of a synthetic score report: the code and the
// mark drawn in the outcome column. Mark is "check", "cross", "circle", a
// ZapfDingbats character, or "" for none. The prefixes "image:" and
// "inline:" draw the shape as a bitmap instead, placed through an image
// XObject or inline in the content stream. The bitmap is 24 pixels with a
// stroke half-width of 1.5 unless a suffix says otherwise, as in
// "image:check@40/2.5".
type Row struct {
	Code string
	Mark string
}

// ReportPage draws a letter-size score report page with a student header,
// the two column headers and one line per row, 30pt apart from y=140. An
// empty student leaves the header out, so the page continues the previous
// student.
func (b *Builder) ReportPage(student string, rows ...Row) *Page {
	p := b.Letter()
	if student != "" {
		p.Text("Helvetica-Bold", 12, 72, 60, "Name: "+student).
			Text("Helvetica", 10, 72, 80, "Lexile Range: 850L - 1050L").
			Text("Helvetica", 10, 72, 95, "Performance Level: At Proficiency")
	}
	p.Text("Helvetica-Bold", 10, 72, 110, "Standard").
		Text("Helvetica-Bold", 10, 430, 110, "Student Performance")

	for i, r := range rows {
		y := 140 + float64(i)*30
		p.Text("Helvetica", 10, 72, y, "RC|"+r.Code)
		if mark, ok := strings.CutPrefix(r.Mark, "image:"); ok {
			kind, n, half := bitmapMark(mark)
			p.GrayImage(450, y-9, 10, 10, n, n, MarkPixels(kind, n, half), true)
			continue
		}
		if mark, ok := strings.CutPrefix(r.Mark, "inline:"); ok {
			kind, n, half := bitmapMark(mark)
			p.InlineGrayImage(450, y-9, 10, 10, n, n, MarkPixels(kind, n, half), false)
			continue
		}
		switch r.Mark {
		case "":
		case "check":
			p.Check(450, y-9, 10)
		case "cross":
			p.Cross(450, y-9, 10)
		case "circle":
			p.Circle(455, y-4, 5)
		default:
			p.Text("ZapfDingbats", 10, 450, y, r.Mark)
		}
	}
	return p
}

// bitmapMark splits "kind@size/half" into its parts. Missing or malformed
// parts keep their defaults.
func bitmapMark(mark string) (kind string, n int, half float64) {
	kind, n, half = mark, 24, 1.5
	k, dims, ok := strings.Cut(mark, "@")
	if !ok {
		return kind, n, half
	}
	kind = k
	size, width, _ := strings.Cut(dims, "/")
	if v, err := strconv.Atoi(size); err == nil && v > 0 {
		n = v
	}
	if v, err := strconv.ParseFloat(width, 64); err == nil && v > 0 {
		half = v
	}
	return kind, n, half
}
