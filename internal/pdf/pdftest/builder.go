// Package pdftest writes small synthetic PDF files for tests. Coordinates
// given to the builder are top-left based, like the layout package; the
// builder flips them into PDF user space.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Builder accumulates pages and serializes them with a classic xref table.
type Builder struct {
	pages []*Page
}

// New returns an empty builder.
func New() *Builder { return &Builder{} }

// Page is one page under construction.
type Page struct {
	width, height float64
	content       bytes.Buffer
	fonts         []string
	xobjects      []xobject
}

type xobject struct {
	name  string
	dict  string
	data  []byte
	flate bool
}

// AddPage appends a page of the given size in points.
func (b *Builder) AddPage(width, height float64) *Page {
	p := &Page{width: width, height: height}
	b.pages = append(b.pages, p)
	return p
}

// Letter appends a US Letter page.
func (b *Builder) Letter() *Page { return b.AddPage(612, 792) }

func (p *Page) fontRes(base string) string {
	for i, f := range p.fonts {
		if f == base {
			return fmt.Sprintf("F%d", i+1)
		}
	}
	p.fonts = append(p.fonts, base)
	return fmt.Sprintf("F%d", len(p.fonts))
}

func (p *Page) flip(y float64) float64 { return p.height - y }

// Text shows s in one of the standard 14 fonts with its baseline at
// (x, y).
func (p *Page) Text(font string, size, x, y float64, s string) *Page {
	fmt.Fprintf(&p.content, "BT /%s %s Tf %s %s Td (%s) Tj ET\n",
		p.fontRes(font), num(size), num(x), num(p.flip(y)), escape(s))
	return p
}

// Polyline strokes a path through pts.
func (p *Page) Polyline(width float64, pts ...[2]float64) *Page {
	if len(pts) < 2 {
		return p
	}
	fmt.Fprintf(&p.content, "%s w 0 G ", num(width))
	for i, pt := range pts {
		op := "l"
		if i == 0 {
			op = "m"
		}
		fmt.Fprintf(&p.content, "%s %s %s ", num(pt[0]), num(p.flip(pt[1])), op)
	}
	p.content.WriteString("S\n")
	return p
}

// Check strokes a check mark inside the size x size square at (x, y).
func (p *Page) Check(x, y, size float64) *Page {
	return p.Polyline(size/8,
		[2]float64{x, y + size*0.55},
		[2]float64{x + size*0.35, y + size},
		[2]float64{x + size, y})
}

// Cross strokes both diagonals of the size x size square at (x, y) as one
// path with two subpaths.
func (p *Page) Cross(x, y, size float64) *Page {
	fmt.Fprintf(&p.content, "%s w 0 G %s %s m %s %s l %s %s m %s %s l S\n", num(size/8),
		num(x), num(p.flip(y)), num(x+size), num(p.flip(y+size)),
		num(x+size), num(p.flip(y)), num(x), num(p.flip(y+size)))
	return p
}

// Circle strokes a circle of radius r centered at (cx, cy) with four
// Bezier arcs.
func (p *Page) Circle(cx, cy, r float64) *Page {
	k := 0.5523 * r
	y := p.flip(cy)
	fmt.Fprintf(&p.content, "%s w 0 G %s %s m ", num(r/6), num(cx+r), num(y))
	arcs := [4][6]float64{
		{cx + r, y + k, cx + k, y + r, cx, y + r},
		{cx - k, y + r, cx - r, y + k, cx - r, y},
		{cx - r, y - k, cx - k, y - r, cx, y - r},
		{cx + k, y - r, cx + r, y - k, cx + r, y},
	}
	for _, a := range arcs {
		fmt.Fprintf(&p.content, "%s %s %s %s %s %s c ", num(a[0]), num(a[1]), num(a[2]), num(a[3]), num(a[4]), num(a[5]))
	}
	p.content.WriteString("h S\n")
	return p
}

// Rect fills a rectangle.
func (p *Page) Rect(x, y, w, h float64) *Page {
	fmt.Fprintf(&p.content, "0 g %s %s %s %s re f\n", num(x), num(p.flip(y+h)), num(w), num(h))
	return p
}

// GrayImage places an 8-bit DeviceGray image of pw x ph pixels into the
// w x h box at (x, y). Rows run top to bottom. With flate set the samples
// are Flate compressed.
func (p *Page) GrayImage(x, y, w, h float64, pw, ph int, pix []byte, flate bool) *Page {
	name := fmt.Sprintf("Im%d", len(p.xobjects)+1)
	p.xobjects = append(p.xobjects, xobject{
		name: name,
		dict: fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", pw, ph),
		data: pix, flate: flate,
	})
	fmt.Fprintf(&p.content, "q %s 0 0 %s %s %s cm /%s Do Q\n", num(w), num(h), num(x), num(p.flip(y+h)), name)
	return p
}

// InlineGrayImage is GrayImage with the samples written inline between
// BI and EI instead of in an XObject. With length set the dictionary
// carries an /L entry; without it readers have to find EI by scanning.
func (p *Page) InlineGrayImage(x, y, w, h float64, pw, ph int, pix []byte, length bool) *Page {
	fmt.Fprintf(&p.content, "q %s 0 0 %s %s %s cm BI /W %d /H %d /CS /G /BPC 8 ", num(w), num(h), num(x), num(p.flip(y+h)), pw, ph)
	if length {
		fmt.Fprintf(&p.content, "/L %d ", len(pix))
	}
	p.content.WriteString("ID ")
	p.content.Write(pix)
	p.content.WriteString("\nEI Q\n")
	return p
}

// Form wraps content, written in PDF user space, in a form XObject and
// paints it translated by (dx, dy) in PDF units.
func (p *Page) Form(dx, dy float64, content string) *Page {
	name := fmt.Sprintf("Fm%d", len(p.xobjects)+1)
	p.xobjects = append(p.xobjects, xobject{
		name: name,
		dict: fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [0 0 %s %s] /Matrix [1 0 0 1 %s %s]",
			num(p.width), num(p.height), num(dx), num(dy)),
		data: []byte(content),
	})
	fmt.Fprintf(&p.content, "/%s Do\n", name)
	return p
}

// Raw appends operators to the content stream verbatim.
func (p *Page) Raw(ops string) *Page {
	p.content.WriteString(ops)
	p.content.WriteByte('\n')
	return p
}

// Bytes serializes the document.
func (b *Builder) Bytes() []byte {
	var objs [][]byte
	add := func(body []byte) int {
		objs = append(objs, body)
		return len(objs)
	}
	catalog := add(nil)
	pages := add(nil)

	fontIDs := map[string]int{}
	var kids []string
	for _, p := range b.pages {
		var fonts []string
		for i, base := range p.fonts {
			id, ok := fontIDs[base]
			if !ok {
				id = add([]byte(fontDict(base)))
				fontIDs[base] = id
			}
			fonts = append(fonts, fmt.Sprintf("/F%d %d 0 R", i+1, id))
		}
		var xobjs []string
		for _, x := range p.xobjects {
			xobjs = append(xobjs, fmt.Sprintf("/%s %d 0 R", x.name, add(stream(x.dict, x.data, x.flate))))
		}
		contents := add(stream("", p.content.Bytes(), false))

		res := "/Resources << /Font << " + strings.Join(fonts, " ") + " >> /XObject << " + strings.Join(xobjs, " ") + " >> >>"
		page := add([]byte(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] %s /Contents %d 0 R >>",
			pages, num(p.width), num(p.height), res, contents)))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objs[catalog-1] = []byte(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	objs[pages-1] = []byte(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids)))

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)
	return out.Bytes()
}

// WriteFile serializes the document into dir/name and returns the path.
func (b *Builder) WriteFile(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, b.Bytes(), 0o644)
}

func fontDict(base string) string {
	if base == "ZapfDingbats" || base == "Symbol" {
		return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s >>", base)
	}
	return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding >>", base)
}

func stream(dict string, data []byte, flate bool) []byte {
	if flate {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(data)
		w.Close()
		data = z.Bytes()
		dict += " /Filter /FlateDecode"
	}
	var out bytes.Buffer
	fmt.Fprintf(&out, "<< %s /Length %d >>\nstream\n", dict, len(data))
	out.Write(data)
	out.WriteString("\nendstream")
	return out.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func num(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return strings.TrimRight(fmt.Sprintf("%.3f", f), "0")
}
