package extraction

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/score-report-reader/internal/layout"
	"github.com/a3tai/score-report-reader/internal/pdf/errors"
)

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m followed by n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func translate(tx, ty float64) matrix { return matrix{1, 0, 0, 1, tx, ty} }

func matrixFrom(args []types.Object) matrix {
	var m matrix
	for i := range m {
		m[i], _ = numberOf(args[i])
	}
	return m
}

// gstate is the part of the PDF graphics state the interpreter tracks,
// text state included.
type gstate struct {
	ctm       matrix
	fill      layout.Color
	stroke    layout.Color
	lineWidth float64

	font      *fontInfo
	fontSize  float64
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	rise      float64
}

func newGState() gstate {
	return gstate{ctm: identity, lineWidth: 1, hscale: 1}
}

// interpreter walks one page's content stream, and any form XObjects it
// paints, appending text runs and graphics to out in page space.
type interpreter struct {
	opts    Options
	images  *imageSource
	pageNum int
	llx     float64
	ury     float64
	out     *layout.Page
	logger  *slog.Logger

	gs    gstate
	stack []gstate

	tm, tlm matrix

	path   []layout.Segment
	cur    layout.Point
	start  layout.Point
	hasCur bool
}

// toPage maps a user-space point through the CTM into top-left page space.
func (in *interpreter) toPage(x, y float64) layout.Point {
	dx, dy := in.gs.ctm.apply(x, y)
	return layout.Point{X: dx - in.llx, Y: in.ury - dy}
}

// run interprets a content stream. Syntax errors, and inline images that
// cannot be delimited, fail the whole stream.
func (in *interpreter) run(content, resources pdf.Value, depth int) error {
	data, err := contentBytes(content)
	if err != nil {
		return err
	}
	fonts := newFontCache(resources)
	return parseContent(data, func(op contentOp) error {
		return in.do(op, resources, fonts, depth)
	})
}

func (in *interpreter) do(op contentOp, resources pdf.Value, fonts *fontCache, depth int) error {
	args := op.args
	num := func(i int) float64 {
		if i < len(args) {
			n, _ := numberOf(args[i])
			return n
		}
		return 0
	}
	str := func(i int) (string, bool) {
		if i < len(args) {
			return stringOf(args[i])
		}
		return "", false
	}

	switch op.name {
	// graphics state
	case "q":
		in.stack = append(in.stack, in.gs)
	case "Q":
		if n := len(in.stack); n > 0 {
			in.gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			in.gs.ctm = matrixFrom(args).mul(in.gs.ctm)
		}
	case "w":
		in.gs.lineWidth = num(0)

	// color
	case "G", "RG", "K", "SC", "SCN":
		if c, ok := colorFrom(args); ok {
			in.gs.stroke = c
		}
	case "g", "rg", "k", "sc", "scn":
		if c, ok := colorFrom(args); ok {
			in.gs.fill = c
		}
	case "CS":
		in.gs.stroke = layout.Color{}
	case "cs":
		in.gs.fill = layout.Color{}

	// path construction
	case "m":
		p := in.toPage(num(0), num(1))
		in.path = append(in.path, layout.Segment{Kind: layout.SegmentMove, To: p})
		in.cur, in.start, in.hasCur = p, p, true
	case "l":
		p := in.toPage(num(0), num(1))
		if in.hasCur {
			in.path = append(in.path, layout.Segment{Kind: layout.SegmentLine, From: in.cur, To: p})
		}
		in.cur, in.hasCur = p, true
	case "c":
		in.curve(in.toPage(num(0), num(1)), in.toPage(num(2), num(3)), in.toPage(num(4), num(5)))
	case "v":
		in.curve(in.cur, in.toPage(num(0), num(1)), in.toPage(num(2), num(3)))
	case "y":
		p := in.toPage(num(2), num(3))
		in.curve(in.toPage(num(0), num(1)), p, p)
	case "h":
		in.closePath()
	case "re":
		x, y, w, h := num(0), num(1), num(2), num(3)
		a, c := in.toPage(x, y), in.toPage(x+w, y+h)
		in.path = append(in.path, layout.Segment{Kind: layout.SegmentRect, From: a, To: c})
		in.cur, in.start, in.hasCur = in.toPage(x, y), in.toPage(x, y), true

	// path painting
	case "S":
		in.paint(false, true)
	case "s":
		in.closePath()
		in.paint(false, true)
	case "f", "F", "f*":
		in.paint(true, false)
	case "B", "B*":
		in.paint(true, true)
	case "b", "b*":
		in.closePath()
		in.paint(true, true)
	case "n":
		in.clearPath()

	// text objects
	case "BT":
		in.tm, in.tlm = identity, identity
	case "ET":
	case "Tf":
		if len(args) == 2 {
			in.gs.font = fonts.get(nameOf(args[0]))
			in.gs.fontSize = num(1)
		}
	case "Tc":
		in.gs.charSpace = num(0)
	case "Tw":
		in.gs.wordSpace = num(0)
	case "Tz":
		in.gs.hscale = num(0) / 100
	case "TL":
		in.gs.leading = num(0)
	case "Ts":
		in.gs.rise = num(0)
	case "Td":
		in.moveText(num(0), num(1))
	case "TD":
		in.gs.leading = -num(1)
		in.moveText(num(0), num(1))
	case "Tm":
		if len(args) == 6 {
			in.tm = matrixFrom(args)
			in.tlm = in.tm
		}
	case "T*":
		in.moveText(0, -in.gs.leading)
	case "Tj":
		if s, ok := str(0); ok && len(args) == 1 {
			in.emit(in.show(s))
		}
	case "'":
		if s, ok := str(0); ok && len(args) == 1 {
			in.moveText(0, -in.gs.leading)
			in.emit(in.show(s))
		}
	case "\"":
		if s, ok := str(2); ok && len(args) == 3 {
			in.gs.wordSpace = num(0)
			in.gs.charSpace = num(1)
			in.moveText(0, -in.gs.leading)
			in.emit(in.show(s))
		}
	case "TJ":
		if len(args) == 1 {
			if arr, ok := args[0].(types.Array); ok {
				in.showArray(arr)
			}
		}

	// external objects
	case "Do":
		if len(args) == 1 {
			return in.xobject(nameOf(args[0]), resources, depth)
		}
	case "BI":
		return in.inlineImage(op.inline, resources)
	}
	return nil
}

func (in *interpreter) closePath() {
	if in.hasCur {
		in.path = append(in.path, layout.Segment{Kind: layout.SegmentClose, From: in.cur, To: in.start})
		in.cur = in.start
	}
}

func (in *interpreter) curve(c1, c2, to layout.Point) {
	if in.hasCur {
		in.path = append(in.path, layout.Segment{Kind: layout.SegmentCurve, From: in.cur, C1: c1, C2: c2, To: to})
	}
	in.cur, in.hasCur = to, true
}

func (in *interpreter) clearPath() {
	in.path = nil
	in.hasCur = false
}

// paint emits the current path as a vector primitive. Its box covers the
// path geometry only, not the stroke width.
func (in *interpreter) paint(fill, stroke bool) {
	defer in.clearPath()
	var pts []layout.Point
	drawn := false
	for _, s := range in.path {
		switch s.Kind {
		case layout.SegmentMove:
			pts = append(pts, s.To)
		case layout.SegmentCurve:
			pts = append(pts, s.From, s.C1, s.C2, s.To)
			drawn = true
		default:
			pts = append(pts, s.From, s.To)
			drawn = true
		}
	}
	if !drawn {
		return
	}
	v := &layout.Vector{
		Box:      layout.RectFromPoints(pts...),
		Segments: in.path,
	}
	if fill {
		c := in.gs.fill
		v.Fill = &c
	}
	if stroke {
		c := in.gs.stroke
		v.Stroke = &c
		m := in.gs.ctm
		v.StrokeWidth = in.gs.lineWidth * math.Sqrt(math.Abs(m[0]*m[3]-m[1]*m[2]))
	}
	in.out.Graphics = append(in.out.Graphics, v)
}

func (in *interpreter) moveText(tx, ty float64) {
	in.tlm = translate(tx, ty).mul(in.tlm)
	in.tm = in.tlm
}

// show lays out one string operand and advances the text matrix. The run
// box spans the advance horizontally and from descender to ascender
// vertically.
func (in *interpreter) show(raw string) (layout.TextRun, bool) {
	gs := &in.gs
	f := gs.font
	if f == nil {
		f = fallbackFont
	}

	var tx float64
	for _, c := range f.codes(raw) {
		adv := f.width(c)/1000*gs.fontSize + gs.charSpace
		if c == ' ' && !f.twoByte {
			adv += gs.wordSpace
		}
		tx += adv * gs.hscale
	}

	trm := in.tm.mul(gs.ctm)
	lo, hi := gs.rise-0.2*gs.fontSize, gs.rise+0.8*gs.fontSize
	var pts [4]layout.Point
	for i, p := range [4][2]float64{{0, lo}, {tx, lo}, {0, hi}, {tx, hi}} {
		x, y := trm.apply(p[0], p[1])
		pts[i] = layout.Point{X: x - in.llx, Y: in.ury - y}
	}
	in.tm = translate(tx, 0).mul(in.tm)

	text := norm.NFKC.String(f.decode(raw))
	if strings.TrimSpace(text) == "" {
		return layout.TextRun{}, false
	}
	return layout.TextRun{
		Text: text,
		Box:  layout.RectFromPoints(pts[:]...),
		Font: f.name,
		Size: math.Abs(gs.fontSize) * math.Hypot(trm[2], trm[3]),
	}, true
}

func (in *interpreter) emit(run layout.TextRun, ok bool) {
	if ok {
		in.out.Text = append(in.out.Text, run)
	}
}

// Kerning adjustments in TJ arrays, in thousandths of an em. A gap wider
// than splitGap starts a new run; one wider than spaceGap inside a run
// reads as a word break.
const (
	spaceGap = 200.0
	splitGap = 1000.0
)

func (in *interpreter) showArray(arr types.Array) {
	var cur *layout.TextRun
	gap := 0.0
	flush := func() {
		if cur != nil {
			in.out.Text = append(in.out.Text, *cur)
			cur = nil
		}
	}
	for _, el := range arr {
		if raw, ok := stringOf(el); ok {
			run, ok := in.show(raw)
			if !ok {
				gap += spaceGap
				continue
			}
			switch {
			case cur == nil:
				cur = &run
			case gap > splitGap:
				flush()
				cur = &run
			default:
				if gap > spaceGap && !strings.HasSuffix(cur.Text, " ") {
					cur.Text += " "
				}
				cur.Text += run.Text
				cur.Box = cur.Box.Union(run.Box)
			}
			gap = 0
			continue
		}
		if adj, ok := numberOf(el); ok {
			in.tm = translate(-adj/1000*in.gs.fontSize*in.gs.hscale, 0).mul(in.tm)
			gap -= adj
		}
	}
	flush()
}

// xobject paints a named XObject: images become raster primitives, forms
// are interpreted in place with their own matrix and resources.
func (in *interpreter) xobject(name string, resources pdf.Value, depth int) error {
	x := resources.Key("XObject").Key(name)
	if x.IsNull() {
		return nil
	}
	switch x.Key("Subtype").Name() {
	case "Image":
		in.image(name, x)
	case "Form":
		if depth >= in.opts.MaxFormDepth {
			in.logger.Debug("form nesting too deep", "page", in.pageNum, "form", name)
			return nil
		}
		saved, tm, tlm := in.gs, in.tm, in.tlm
		if m := x.Key("Matrix"); m.Kind() == pdf.Array && m.Len() == 6 {
			var fm matrix
			for i := range fm {
				fm[i] = m.Index(i).Float64()
			}
			in.gs.ctm = fm.mul(in.gs.ctm)
		}
		res := x.Key("Resources")
		if res.IsNull() {
			res = resources
		}
		if err := in.run(x, res, depth+1); err != nil {
			return fmt.Errorf("form %s: %w", name, err)
		}
		in.gs, in.tm, in.tlm = saved, tm, tlm
	default:
		in.logger.Debug("skipping xobject", "page", in.pageNum, "name", name, "dict", describe(x))
	}
	return nil
}

// unitSquare is the page box an image placed at the current CTM covers.
func (in *interpreter) unitSquare() layout.Rect {
	return layout.RectFromPoints(in.toPage(0, 0), in.toPage(1, 0), in.toPage(0, 1), in.toPage(1, 1))
}

// decodable reports whether an image placed over box is small enough to
// be a mark and worth decoding.
func (in *interpreter) decodable(box layout.Rect) bool {
	max := in.opts.MaxRasterSize
	return max <= 0 || (box.Width() <= max && box.Height() <= max)
}

// image records an image placement. Images paint the unit square of the
// CTM; pixels are decoded only for placements small enough to be marks.
func (in *interpreter) image(name string, x pdf.Value) {
	box := in.unitSquare()
	r := &layout.Raster{
		Box:         box,
		Name:        name,
		PixelWidth:  int(x.Key("Width").Int64()),
		PixelHeight: int(x.Key("Height").Int64()),
	}
	if in.decodable(box) {
		img, err := in.images.decode(in.pageNum, name, x)
		if err != nil {
			in.logger.Debug("image not decoded", "page", in.pageNum, "name", name, "error", err)
		} else {
			r.Image = img
		}
	}
	in.out.Graphics = append(in.out.Graphics, r)
}

// inlineName is the raster name given to inline images.
const inlineName = "inline"

// inlineImage records a BI/ID/EI image like an XObject placement. A
// dictionary without a usable size fails the page; sample data that does
// not decode only leaves the raster without pixels.
func (in *interpreter) inlineImage(img *inlineImage, resources pdf.Value) error {
	if img == nil {
		return nil
	}
	info, err := inlineInfo(img.dict, resources)
	if err != nil {
		return err
	}
	box := in.unitSquare()
	r := &layout.Raster{
		Box:         box,
		Name:        inlineName,
		PixelWidth:  info.width,
		PixelHeight: info.height,
	}
	if in.decodable(box) {
		err := errors.Guard(errors.ErrorTypePageExtraction, func() error {
			pix, derr := decodeImage(info, img.data)
			r.Image = pix
			return derr
		})
		if err != nil {
			r.Image = nil
			in.logger.Debug("inline image not decoded", "page", in.pageNum, "error", err)
		}
	}
	in.out.Graphics = append(in.out.Graphics, r)
	return nil
}

// colorFrom reads a color operand list: one component is gray, three RGB,
// four CMYK. Pattern names and other counts are ignored.
func colorFrom(args []types.Object) (layout.Color, bool) {
	var comps []float64
	for _, a := range args {
		if n, ok := numberOf(a); ok {
			comps = append(comps, clamp01(n))
		}
	}
	switch len(comps) {
	case 1:
		return layout.Color{R: comps[0], G: comps[0], B: comps[0]}, true
	case 3:
		return layout.Color{R: comps[0], G: comps[1], B: comps[2]}, true
	case 4:
		k := comps[3]
		return layout.Color{
			R: (1 - comps[0]) * (1 - k),
			G: (1 - comps[1]) * (1 - k),
			B: (1 - comps[2]) * (1 - k),
		}, true
	}
	return layout.Color{}, false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
