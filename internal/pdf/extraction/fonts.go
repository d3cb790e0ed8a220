package extraction

import (
	"strings"

	"github.com/ledongthuc/pdf"
)

// Widths used when a font carries none, in thousandths of an em.
const (
	defaultSimpleWidth = 500.0
	defaultCIDWidth    = 1000.0
)

// fontInfo is what the interpreter needs from a font resource: how to
// split a string operand into codes, how far each code advances and what
// text it decodes to.
type fontInfo struct {
	name    string
	twoByte bool

	enc    pdf.TextEncoding
	first  int
	widths []float64
	cidDW  float64
	cidW   map[int]float64
}

// fallbackFont is used for text shown before any Tf.
var fallbackFont = &fontInfo{}

func loadFont(v pdf.Value) *fontInfo {
	f := &fontInfo{
		name: baseFontName(v.Key("BaseFont").Name()),
		enc:  pdf.Font{V: v}.Encoder(),
	}
	if v.Key("Subtype").Name() == "Type0" {
		f.twoByte = true
		f.loadCIDWidths(v.Key("DescendantFonts").Index(0))
		return f
	}
	f.first = int(v.Key("FirstChar").Int64())
	w := v.Key("Widths")
	for i := 0; i < w.Len(); i++ {
		f.widths = append(f.widths, w.Index(i).Float64())
	}
	return f
}

// loadCIDWidths reads the W array: either "c [w1 w2 ...]" or
// "cfirst clast w" entries.
func (f *fontInfo) loadCIDWidths(desc pdf.Value) {
	f.cidDW = defaultCIDWidth
	if dw := desc.Key("DW"); !dw.IsNull() {
		f.cidDW = dw.Float64()
	}
	f.cidW = make(map[int]float64)
	w := desc.Key("W")
	for i := 0; i+1 < w.Len(); {
		c := int(w.Index(i).Int64())
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			for j := 0; j < next.Len(); j++ {
				f.cidW[c+j] = next.Index(j).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= w.Len() {
			break
		}
		last, width := int(next.Int64()), w.Index(i+2).Float64()
		for code := c; code <= last && code-c < 0xFFFF; code++ {
			f.cidW[code] = width
		}
		i += 3
	}
}

// baseFontName strips the subset tag, "ABCDEF+Helvetica" -> "Helvetica".
func baseFontName(name string) string {
	if i := strings.IndexByte(name, '+'); i == 6 {
		return name[i+1:]
	}
	return name
}

func (f *fontInfo) codes(raw string) []int {
	if f.twoByte {
		out := make([]int, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			out = append(out, int(raw[i])<<8|int(raw[i+1]))
		}
		return out
	}
	out := make([]int, len(raw))
	for i := 0; i < len(raw); i++ {
		out[i] = int(raw[i])
	}
	return out
}

func (f *fontInfo) width(code int) float64 {
	if f.twoByte {
		if w, ok := f.cidW[code]; ok {
			return w
		}
		return f.cidDW
	}
	if i := code - f.first; i >= 0 && i < len(f.widths) {
		return f.widths[i]
	}
	return defaultSimpleWidth
}

func (f *fontInfo) decode(raw string) string {
	if f.enc == nil {
		return raw
	}
	return f.enc.Decode(raw)
}

// fontCache loads each font of one resource dictionary once.
type fontCache struct {
	resources pdf.Value
	fonts     map[string]*fontInfo
}

func newFontCache(resources pdf.Value) *fontCache {
	return &fontCache{resources: resources, fonts: make(map[string]*fontInfo)}
}

func (c *fontCache) get(name string) *fontInfo {
	if f, ok := c.fonts[name]; ok {
		return f
	}
	v := c.resources.Key("Font").Key(name)
	f := fallbackFont
	if !v.IsNull() {
		f = loadFont(v)
	}
	c.fonts[name] = f
	return f
}
