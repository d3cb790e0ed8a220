package marks

import (
	"math"
	"sort"

	"github.com/a3tai/score-report-reader/internal/layout"
)

// Normalized distances used by the shape rules. Vertices are mapped into
// the unit square of the path's bounding box before comparison.
const (
	cornerRadius   = 0.25
	ringInner      = 0.35
	ringOuter      = 0.65
	roundShare     = 0.75
	maxStraight    = 0.25
	minCrossSpan   = 0.8
	checkMinDepth  = 0.75
	checkMinX      = 0.15
	checkMaxX      = 0.65
	maxCheckAngle  = 120.0
	pointTolerance = 1e-6
)

// VectorClassifier recognizes check, cross and circle marks drawn as paths.
type VectorClassifier struct {
	MinSize   float64
	MaxSize   float64
	MinAspect float64
	MaxAspect float64
	// TypicalTolerance bounds how far a mark may stray from Typical, as
	// a ratio in either direction.
	TypicalTolerance float64
	// Typical is the mark size learned from the current page; zero means
	// only the absolute envelope applies.
	Typical float64
}

// Learn returns a copy of c whose Typical is the median size of the
// envelope-passing vectors starting at or right of xMin.
func (c VectorClassifier) Learn(vectors []*layout.Vector, xMin float64) VectorClassifier {
	base := c
	base.Typical = 0
	var sizes []float64
	for _, v := range vectors {
		if v.Box.X0 < xMin || !base.Accepts(v) || onlyRects(v) {
			continue
		}
		sizes = append(sizes, markSize(v.Box))
	}
	if len(sizes) == 0 {
		return base
	}
	sort.Float64s(sizes)
	base.Typical = sizes[len(sizes)/2]
	return base
}

// Accepts reports whether v is inside the mark size envelope.
func (c *VectorClassifier) Accepts(v *layout.Vector) bool {
	if v == nil || len(v.Segments) == 0 {
		return false
	}
	size := markSize(v.Box)
	if size < c.MinSize || size > c.MaxSize {
		return false
	}
	aspect := v.Box.Aspect()
	if aspect < c.MinAspect || aspect > c.MaxAspect {
		return false
	}
	if c.Typical > 0 && c.TypicalTolerance > 0 {
		if size < c.Typical/c.TypicalTolerance || size > c.Typical*c.TypicalTolerance {
			return false
		}
	}
	return true
}

// Classify maps a path to an outcome by its segment composition. Fill and
// stroke colors are ignored.
func (c *VectorClassifier) Classify(v *layout.Vector) Outcome {
	if !c.Accepts(v) || onlyRects(v) {
		return Unknown
	}
	s := analyze(v)
	switch {
	case s.isCircle():
		return Partial
	case s.isCross():
		return Incorrect
	case s.isCheck():
		return Correct
	}
	return Unknown
}

func markSize(r layout.Rect) float64 {
	return math.Max(r.Width(), r.Height())
}

func onlyRects(v *layout.Vector) bool {
	for _, s := range v.Segments {
		if s.Kind != layout.SegmentRect && s.Kind != layout.SegmentMove && s.Kind != layout.SegmentClose {
			return false
		}
	}
	return true
}

type line struct{ a, b layout.Point }

type shape struct {
	box       layout.Rect
	lines     []line
	curves    int
	curveEnds []layout.Point
	curveMids []layout.Point
	curveLen  float64
	vertices  []layout.Point
}

func analyze(v *layout.Vector) shape {
	s := shape{box: v.Box}
	for _, seg := range v.Segments {
		switch seg.Kind {
		case layout.SegmentLine, layout.SegmentClose:
			if samePoint(seg.From, seg.To) {
				continue
			}
			s.lines = append(s.lines, line{seg.From, seg.To})
			s.vertices = append(s.vertices, seg.From, seg.To)
		case layout.SegmentCurve:
			mid := bezierMid(seg)
			s.curves++
			s.curveEnds = append(s.curveEnds, seg.From, seg.To)
			s.curveMids = append(s.curveMids, mid)
			s.curveLen += dist(seg.From, mid) + dist(mid, seg.To)
			s.vertices = append(s.vertices, seg.From, seg.To)
		case layout.SegmentRect:
			a, c := seg.From, seg.To
			b, d := layout.Point{X: c.X, Y: a.Y}, layout.Point{X: a.X, Y: c.Y}
			s.lines = append(s.lines, line{a, b}, line{b, c}, line{c, d}, line{d, a})
			s.vertices = append(s.vertices, a, b, c, d)
		}
	}
	return s
}

func (s shape) norm(p layout.Point) layout.Point {
	w, h := s.box.Width(), s.box.Height()
	if w <= 0 || h <= 0 {
		return layout.Point{}
	}
	return layout.Point{X: (p.X - s.box.X0) / w, Y: (p.Y - s.box.Y0) / h}
}

// bezierMid is the point of a cubic segment at t = 0.5.
func bezierMid(seg layout.Segment) layout.Point {
	return layout.Point{
		X: (seg.From.X + 3*seg.C1.X + 3*seg.C2.X + seg.To.X) / 8,
		Y: (seg.From.Y + 3*seg.C1.Y + 3*seg.C2.Y + seg.To.Y) / 8,
	}
}

func dist(a, b layout.Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// isCircle: more curves than straight pieces, little straight length, no
// crossing lines, and curve ends and midpoints lying on the ellipse
// inscribed in the bounding box. A rounded square has as many lines as
// corner arcs and fails the first test.
func (s shape) isCircle() bool {
	if s.curves == 0 || s.curves <= len(s.lines) || s.selfIntersects() {
		return false
	}
	straight := 0.0
	for _, l := range s.lines {
		straight += dist(l.a, l.b)
	}
	if straight > maxStraight*(straight+s.curveLen) {
		return false
	}
	pts := append(append([]layout.Point(nil), s.curveEnds...), s.curveMids...)
	round := 0
	for _, p := range pts {
		n := s.norm(p)
		r := math.Hypot(n.X-0.5, n.Y-0.5)
		if r >= ringInner && r <= ringOuter {
			round++
		}
	}
	return float64(round) >= roundShare*float64(len(pts))
}

// isCross: strokes reach every corner, or three corners with a crossing,
// and enough of the straight length runs diagonally. The last test keeps
// boxes and rounded squares, whose edges reach near the corners too, out.
func (s shape) isCross() bool {
	if s.diagonalSpan() < minCrossSpan {
		return false
	}
	corners := s.coveredCorners()
	if corners >= 4 {
		return true
	}
	return corners == 3 && s.selfIntersects()
}

// diagonalSpan sums, over the straight pieces, the smaller of their
// normalized horizontal and vertical extents. Two full diagonals give 2;
// axis-aligned edges give 0.
func (s shape) diagonalSpan() float64 {
	span := 0.0
	for _, l := range s.lines {
		a, b := s.norm(l.a), s.norm(l.b)
		span += math.Min(math.Abs(a.X-b.X), math.Abs(a.Y-b.Y))
	}
	return span
}

// isCheck: the lowest vertex sits low and left of center, the top-right
// corner is reached and the top-left is not.
func (s shape) isCheck() bool {
	if len(s.vertices) < 3 {
		return false
	}
	lowest := s.norm(s.vertices[0])
	for _, p := range s.vertices[1:] {
		if n := s.norm(p); n.Y > lowest.Y {
			lowest = n
		}
	}
	if lowest.Y < checkMinDepth || lowest.X < checkMinX || lowest.X > checkMaxX {
		return false
	}
	if !s.nearCorner(layout.Point{X: 1, Y: 0}) || s.nearCorner(layout.Point{X: 0, Y: 0}) {
		return false
	}
	if len(s.lines) == 2 && s.curves == 0 {
		return s.vertexAngle() < maxCheckAngle
	}
	return true
}

func (s shape) nearCorner(corner layout.Point) bool {
	for _, p := range s.vertices {
		n := s.norm(p)
		if math.Hypot(n.X-corner.X, n.Y-corner.Y) <= cornerRadius {
			return true
		}
	}
	return false
}

func (s shape) coveredCorners() int {
	n := 0
	for _, c := range []layout.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}} {
		if s.nearCorner(c) {
			n++
		}
	}
	return n
}

// vertexAngle returns the angle in degrees between two connected lines
// at their shared vertex, or 180 when they do not share one.
func (s shape) vertexAngle() float64 {
	a, b := s.lines[0], s.lines[1]
	var v, p, q layout.Point
	switch {
	case samePoint(a.b, b.a):
		v, p, q = a.b, a.a, b.b
	case samePoint(a.a, b.a):
		v, p, q = a.a, a.b, b.b
	case samePoint(a.b, b.b):
		v, p, q = a.b, a.a, b.a
	case samePoint(a.a, b.b):
		v, p, q = a.a, a.b, b.a
	default:
		return 180
	}
	ux, uy := p.X-v.X, p.Y-v.Y
	wx, wy := q.X-v.X, q.Y-v.Y
	den := math.Hypot(ux, uy) * math.Hypot(wx, wy)
	if den == 0 {
		return 180
	}
	cos := math.Max(-1, math.Min(1, (ux*wx+uy*wy)/den))
	return math.Acos(cos) * 180 / math.Pi
}

// selfIntersects reports whether two straight pieces that share no
// endpoint properly cross each other.
func (s shape) selfIntersects() bool {
	for i := 0; i < len(s.lines); i++ {
		for j := i + 1; j < len(s.lines); j++ {
			a, b := s.lines[i], s.lines[j]
			if samePoint(a.a, b.a) || samePoint(a.a, b.b) || samePoint(a.b, b.a) || samePoint(a.b, b.b) {
				continue
			}
			if properIntersect(a, b) {
				return true
			}
		}
	}
	return false
}

func properIntersect(a, b line) bool {
	d1 := orient(b.a, b.b, a.a)
	d2 := orient(b.a, b.b, a.b)
	d3 := orient(a.a, a.b, b.a)
	d4 := orient(a.a, a.b, b.b)
	return d1*d2 < 0 && d3*d4 < 0
}

func orient(p, q, r layout.Point) float64 {
	return (q.X-p.X)*(r.Y-p.Y) - (q.Y-p.Y)*(r.X-p.X)
}

func samePoint(a, b layout.Point) bool {
	return math.Abs(a.X-b.X) <= pointTolerance && math.Abs(a.Y-b.Y) <= pointTolerance
}
