// Package layout holds the page model produced by extraction and the
// geometry index that the row and mark stages query.
//
// All coordinates are page-local with the origin at the top-left corner
// and Y increasing downward.
package layout

import (
	"image"
	"math"
)

// Point is a position in page space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box. Y0 is the top edge.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// RectFromPoints returns the smallest Rect enclosing pts.
func RectFromPoints(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, p := range pts[1:] {
		r.X0 = math.Min(r.X0, p.X)
		r.Y0 = math.Min(r.Y0, p.Y)
		r.X1 = math.Max(r.X1, p.X)
		r.Y1 = math.Max(r.Y1, p.Y)
	}
	return r
}

func (r Rect) Width() float64 { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }
func (r Rect) CenterX() float64 { return (r.X0 + r.X1) / 2 }
func (r Rect) CenterY() float64 { return (r.Y0 + r.Y1) / 2 }

// Empty reports whether r has no area and no extent.
func (r Rect) Empty() bool {
	return r.Width() <= 0 && r.Height() <= 0
}

// Union returns the smallest Rect containing both r and o. An empty
// zero Rect is treated as the identity.
func (r Rect) Union(o Rect) Rect {
	if r == (Rect{}) {
		return o
	}
	if o == (Rect{}) {
		return r
	}
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Aspect returns width divided by height, or 0 when height is zero.
func (r Rect) Aspect() float64 {
	if r.Height() <= 0 {
		return 0
	}
	return r.Width() / r.Height()
}

// Color is an RGB color with components in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// TextRun is a contiguous run of decoded characters sharing one font.
type TextRun struct {
	Text string  `json:"text"`
	Box  Rect    `json:"box"`
	Font string  `json:"font"`
	Size float64 `json:"size"`
}

// Kind tags the variants of Primitive.
type Kind int

const (
	KindGlyph Kind = iota + 1
	KindVector
	KindRaster
)

func (k Kind) String() string {
	switch k {
	case KindGlyph:
		return "glyph"
	case KindVector:
		return "vector"
	case KindRaster:
		return "raster"
	default:
		return "unknown"
	}
}

// Primitive is a candidate mark. The concrete types are *Glyph, *Vector
// and *Raster; identity is pointer identity.
type Primitive interface {
	Kind() Kind
	Bounds() Rect
}

// Glyph is a text run that renders a mark as a literal character.
type Glyph struct {
	Run TextRun `json:"run"`
}

func (g *Glyph) Kind() Kind { return KindGlyph }
func (g *Glyph) Bounds() Rect { return g.Run.Box }
func (g *Glyph) String() string { return g.Run.Text }

// SegmentKind identifies one path construction operator.
type SegmentKind int

const (
	SegmentMove SegmentKind = iota + 1
	SegmentLine
	SegmentCurve
	SegmentRect
	SegmentClose
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentMove:
		return "move"
	case SegmentLine:
		return "line"
	case SegmentCurve:
		return "curve"
	case SegmentRect:
		return "rect"
	case SegmentClose:
		return "close"
	default:
		return "?"
	}
}

// Segment is one path element in page space. For lines and closes From
// and To are the endpoints; curves also carry their two control points;
// rectangles use From and To as opposite corners; moves set only To.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	From Point       `json:"from"`
	To   Point       `json:"to"`
	C1   Point       `json:"c1,omitempty"`
	C2   Point       `json:"c2,omitempty"`
}

// Vector is one painted drawing path.
type Vector struct {
	Box         Rect      `json:"box"`
	Segments    []Segment `json:"segments"`
	Fill        *Color    `json:"fill,omitempty"`
	Stroke      *Color    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"stroke_width,omitempty"`
}

func (v *Vector) Kind() Kind { return KindVector }
func (v *Vector) Bounds() Rect { return v.Box }

// Raster is one placed image. Image holds the decoded samples and is nil
// when the image was too large to be a mark or could not be decoded.
type Raster struct {
	Box         Rect        `json:"box"`
	Name        string      `json:"name"`
	PixelWidth  int         `json:"pixel_width"`
	PixelHeight int         `json:"pixel_height"`
	Image       image.Image `json:"-"`
}

func (r *Raster) Kind() Kind { return KindRaster }
func (r *Raster) Bounds() Rect { return r.Box }

// Page is one extracted page. It is not modified after extraction.
type Page struct {
	Number   int         `json:"number"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Text     []TextRun   `json:"text"`
	Graphics []Primitive `json:"-"`
}

// Vectors returns the vector primitives of the page in paint order.
func (p Page) Vectors() []*Vector {
	var out []*Vector
	for _, g := range p.Graphics {
		if v, ok := g.(*Vector); ok {
			out = append(out, v)
		}
	}
	return out
}

// Rasters returns the raster primitives of the page in paint order.
func (p Page) Rasters() []*Raster {
	var out []*Raster
	for _, g := range p.Graphics {
		if r, ok := g.(*Raster); ok {
			out = append(out, r)
		}
	}
	return out
}
