package extraction

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/tiff"

	"github.com/a3tai/score-report-reader/internal/pdf/errors"
)

// maxImagePixels bounds the samples decoded for one image.
const maxImagePixels = 4 << 20

// imageSource decodes image XObjects of one document. Streams are decoded
// from the file bytes directly when the filter chain allows it; anything
// else (CCITT, JBIG2, JPX, encrypted files) goes through pdfcpu's image
// extraction, which is loaded on first use.
type imageSource struct {
	data      []byte
	encrypted bool
	cache     *lru.Cache[string, image.Image]
	logger    *slog.Logger

	ctx      *model.Context
	ctxErr   error
	ctxTried bool
	byPage   map[int]map[string]model.Image
}

func newImageSource(data []byte, encrypted bool, cacheSize int, logger *slog.Logger) *imageSource {
	cache, err := lru.New[string, image.Image](cacheSize)
	if err != nil {
		// only fails for a non-positive size
		cache, _ = lru.New[string, image.Image](defaultImageCacheSize)
	}
	return &imageSource{
		data:      data,
		encrypted: encrypted,
		cache:     cache,
		logger:    logger,
		byPage:    make(map[int]map[string]model.Image),
	}
}

// decode returns the pixels of image XObject x, placed as name on page.
// The same stream placed many times is decoded once.
func (s *imageSource) decode(page int, name string, x pdf.Value) (image.Image, error) {
	key, ok := streamKey(x)
	if ok {
		if img, hit := s.cache.Get(key); hit {
			return img, nil
		}
	} else {
		key = fmt.Sprintf("p%d/%s", page, name)
	}

	var img image.Image
	err := fmt.Errorf("encrypted stream")
	if !s.encrypted {
		err = errors.Guard(errors.ErrorTypePageExtraction, func() error {
			var derr error
			img, derr = s.decodeRaw(x)
			return derr
		})
	}
	if err != nil {
		s.logger.Debug("raw image decode failed, trying pdfcpu", "page", page, "name", name, "error", err)
		img, err = s.viaPDFCPU(page, name)
		if err != nil {
			return nil, err
		}
	}
	s.cache.Add(key, img)
	return img, nil
}

// streamKey identifies a stream by where its data starts in the file.
func streamKey(x pdf.Value) (string, bool) {
	if x.Kind() != pdf.Stream {
		return "", false
	}
	str := x.String()
	i := strings.LastIndexByte(str, '@')
	if i < 0 {
		return "", false
	}
	return str[i+1:], true
}

// rawStream returns the undecoded bytes of stream x.
func (s *imageSource) rawStream(x pdf.Value) ([]byte, error) {
	key, ok := streamKey(x)
	if !ok {
		return nil, fmt.Errorf("not a stream")
	}
	off, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, err
	}
	n := x.Key("Length").Int64()
	if off < 0 || n < 0 || off+n > int64(len(s.data)) {
		return nil, fmt.Errorf("stream [%d,%d) outside file", off, off+n)
	}
	return s.data[off : off+n], nil
}

func (s *imageSource) decodeRaw(x pdf.Value) (image.Image, error) {
	raw, err := s.rawStream(x)
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(xobjectInfo(x), raw)
	if err != nil {
		return nil, err
	}
	if sm := x.Key("SMask"); sm.Kind() == pdf.Stream {
		if mask, err := s.decodeRaw(sm); err == nil {
			img = withAlpha(img, mask)
		}
	}
	return img, nil
}

// imageInfo is what the decoder needs to know about an image, read from
// an XObject or from an inline image dictionary.
type imageInfo struct {
	width, height int
	bpc           int
	mask          bool
	cs            colorSpace
	csErr         error
	decode        []float64
	filters       []string
	params        []filterParams
}

func xobjectInfo(x pdf.Value) imageInfo {
	info := imageInfo{
		width:  int(x.Key("Width").Int64()),
		height: int(x.Key("Height").Int64()),
		bpc:    int(x.Key("BitsPerComponent").Int64()),
		mask:   x.Key("ImageMask").Kind() == pdf.Bool && x.Key("ImageMask").Bool(),
	}
	info.cs, info.csErr = parseColorSpace(x.Key("ColorSpace"))
	if d := x.Key("Decode"); d.Kind() == pdf.Array {
		for i := 0; i < d.Len(); i++ {
			info.decode = append(info.decode, d.Index(i).Float64())
		}
	}
	info.filters, info.params = filterChain(x)
	return info
}

// inlineInfo reads an inline image dictionary, abbreviated keys and
// values included. A color space may also name a resource.
func inlineInfo(d types.Dict, resources pdf.Value) (imageInfo, error) {
	entry := func(short, long string) types.Object {
		if v, ok := d[short]; ok {
			return v
		}
		return d[long]
	}
	intEntry := func(short, long string) int {
		n, _ := numberOf(entry(short, long))
		return int(n)
	}

	info := imageInfo{
		width:  intEntry("W", "Width"),
		height: intEntry("H", "Height"),
		bpc:    intEntry("BPC", "BitsPerComponent"),
	}
	if info.width <= 0 || info.height <= 0 {
		return imageInfo{}, fmt.Errorf("inline image has no size")
	}
	if m, ok := entry("IM", "ImageMask").(types.Boolean); ok {
		info.mask = bool(m)
	}
	info.cs, info.csErr = inlineColorSpace(entry("CS", "ColorSpace"), resources)
	if a, ok := entry("D", "Decode").(types.Array); ok {
		for _, o := range a {
			n, _ := numberOf(o)
			info.decode = append(info.decode, n)
		}
	}

	params := entry("DP", "DecodeParms")
	paramsAt := func(i int) filterParams {
		p := params
		if a, ok := params.(types.Array); ok {
			p = nil
			if i < len(a) {
				p = a[i]
			}
		}
		return inlineParams(p)
	}
	switch f := entry("F", "Filter").(type) {
	case types.Name:
		info.filters = []string{string(f)}
		info.params = []filterParams{paramsAt(0)}
	case types.Array:
		for i, o := range f {
			info.filters = append(info.filters, nameOf(o))
			info.params = append(info.params, paramsAt(i))
		}
	}
	return info, nil
}

func inlineParams(o types.Object) filterParams {
	d, _ := o.(types.Dict)
	get := func(key string, def int) int {
		if n, ok := numberOf(d[key]); ok && n > 0 {
			return int(n)
		}
		return def
	}
	p := filterParams{
		predictor: get("Predictor", 0),
		columns:   get("Columns", 1),
		bpc:       get("BitsPerComponent", 8),
		colors:    get("Colors", 1),
	}
	if n, ok := numberOf(d["EarlyChange"]); ok && n != 1 {
		p.lzwLate = true
	}
	return p
}

func inlineColorSpace(o types.Object, resources pdf.Value) (colorSpace, error) {
	switch v := o.(type) {
	case nil:
		return colorSpace{comps: 1}, nil
	case types.Name:
		if cs, ok := deviceSpace(string(v)); ok {
			return cs, nil
		}
		if r := resources.Key("ColorSpace").Key(string(v)); !r.IsNull() {
			return parseColorSpace(r)
		}
		return colorSpace{}, fmt.Errorf("unsupported color space %s", v)
	case types.Array:
		if len(v) == 4 && (nameOf(v[0]) == "Indexed" || nameOf(v[0]) == "I") {
			base, err := inlineColorSpace(v[1], resources)
			if err != nil {
				return colorSpace{}, err
			}
			hival, _ := numberOf(v[2])
			lookup, _ := stringOf(v[3])
			return indexedSpace(base, int(hival), []byte(lookup))
		}
		if len(v) > 0 {
			return colorSpace{}, fmt.Errorf("unsupported inline color space %s", nameOf(v[0]))
		}
	}
	return colorSpace{}, fmt.Errorf("unsupported inline color space %v", o)
}

// decodeImage runs raw through the image's filter chain and converts the
// samples. DCT data is handed to the JPEG decoder as is.
func decodeImage(info imageInfo, raw []byte) (image.Image, error) {
	var err error
	for i, name := range info.filters {
		switch name {
		case "DCTDecode", "DCT":
			if i != len(info.filters)-1 {
				return nil, errUnsupportedFilter(name + " before other filters")
			}
			return jpeg.Decode(bytes.NewReader(raw))
		case "CCITTFaxDecode", "CCF", "JBIG2Decode", "JPXDecode":
			return nil, errUnsupportedFilter(name)
		}
		raw, err = decodeFilter(name, raw, info.params[i])
		if err != nil {
			return nil, err
		}
	}
	return samplesToImage(info, raw)
}

// colorSpace describes how image samples map to color.
type colorSpace struct {
	comps   int
	cmyk    bool
	tint    bool
	palette []color.NRGBA
}

// deviceSpace resolves a device or calibrated color space name, full or
// abbreviated.
func deviceSpace(name string) (colorSpace, bool) {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return colorSpace{comps: 1}, true
	case "DeviceRGB", "RGB", "CalRGB", "Lab":
		return colorSpace{comps: 3}, true
	case "DeviceCMYK", "CMYK":
		return colorSpace{comps: 4, cmyk: true}, true
	}
	return colorSpace{}, false
}

func parseColorSpace(v pdf.Value) (colorSpace, error) {
	switch v.Kind() {
	case pdf.Null:
		return colorSpace{comps: 1}, nil
	case pdf.Name:
		if cs, ok := deviceSpace(v.Name()); ok {
			return cs, nil
		}
		return colorSpace{}, fmt.Errorf("unsupported color space %s", v.Name())
	case pdf.Array:
		switch v.Index(0).Name() {
		case "ICCBased":
			switch v.Index(1).Key("N").Int64() {
			case 1:
				return colorSpace{comps: 1}, nil
			case 4:
				return colorSpace{comps: 4, cmyk: true}, nil
			default:
				return colorSpace{comps: 3}, nil
			}
		case "CalGray":
			return colorSpace{comps: 1}, nil
		case "CalRGB", "Lab":
			return colorSpace{comps: 3}, nil
		case "Separation":
			return colorSpace{comps: 1, tint: true}, nil
		case "Indexed", "I":
			return parseIndexed(v)
		}
		return colorSpace{}, fmt.Errorf("unsupported color space %s", v.Index(0).Name())
	}
	return colorSpace{}, fmt.Errorf("unsupported color space %s", describe(v))
}

func parseIndexed(v pdf.Value) (colorSpace, error) {
	base, err := parseColorSpace(v.Index(1))
	if err != nil {
		return colorSpace{}, err
	}
	var lookup []byte
	switch l := v.Index(3); l.Kind() {
	case pdf.String:
		lookup = []byte(l.RawString())
	case pdf.Stream:
		rc := l.Reader()
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return colorSpace{}, err
		}
		lookup = buf.Bytes()
	}
	return indexedSpace(base, int(v.Index(2).Int64()), lookup)
}

// indexedSpace builds the palette of an Indexed color space over base.
func indexedSpace(base colorSpace, hival int, lookup []byte) (colorSpace, error) {
	if base.palette != nil {
		return colorSpace{}, fmt.Errorf("nested indexed color space")
	}
	if hival < 0 || hival > 255 {
		return colorSpace{}, fmt.Errorf("indexed color space hival %d out of range", hival)
	}
	cs := colorSpace{comps: 1, palette: make([]color.NRGBA, hival+1)}
	for i := range cs.palette {
		vals := make([]float64, base.comps)
		for c := range vals {
			if j := i*base.comps + c; j < len(lookup) {
				vals[c] = float64(lookup[j]) / 255
			}
		}
		cs.palette[i] = base.toColor(vals)
	}
	return cs, nil
}

func (cs colorSpace) toColor(v []float64) color.NRGBA {
	to8 := func(f float64) uint8 { return uint8(clamp01(f)*255 + 0.5) }
	switch {
	case cs.cmyk:
		k := v[3]
		return color.NRGBA{to8((1 - v[0]) * (1 - k)), to8((1 - v[1]) * (1 - k)), to8((1 - v[2]) * (1 - k)), 255}
	case cs.comps == 3:
		return color.NRGBA{to8(v[0]), to8(v[1]), to8(v[2]), 255}
	case cs.tint:
		g := to8(1 - v[0])
		return color.NRGBA{g, g, g, 255}
	default:
		g := to8(v[0])
		return color.NRGBA{g, g, g, 255}
	}
}

// samplesToImage converts decoded sample data to an image. Image masks
// become black where paint is applied and transparent elsewhere.
func samplesToImage(info imageInfo, data []byte) (image.Image, error) {
	w, h := info.width, info.height
	if w <= 0 || h <= 0 || w*h > maxImagePixels {
		return nil, fmt.Errorf("bad image size %dx%d", w, h)
	}

	cs, bpc := info.cs, info.bpc
	if info.mask {
		cs, bpc = colorSpace{comps: 1}, 1
	} else if info.csErr != nil {
		return nil, info.csErr
	}
	switch bpc {
	case 0:
		bpc = 8
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}

	rowBytes := (w*cs.comps*bpc + 7) / 8
	if len(data) < rowBytes*h {
		return nil, fmt.Errorf("image data short: have %d bytes, need %d", len(data), rowBytes*h)
	}

	maxVal := float64(int(1)<<bpc - 1)
	dmin, dmax := decodeRanges(info.decode, cs, maxVal)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	vals := make([]float64, cs.comps)
	for y := 0; y < h; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for px := 0; px < w; px++ {
			for c := 0; c < cs.comps; c++ {
				s := float64(sample(row, px*cs.comps+c, bpc))
				vals[c] = dmin[c] + s*(dmax[c]-dmin[c])/maxVal
			}
			switch {
			case info.mask:
				// a decoded 0 means paint
				if vals[0] < 0.5 {
					img.SetNRGBA(px, y, color.NRGBA{0, 0, 0, 255})
				}
			case cs.palette != nil:
				i := int(vals[0] + 0.5)
				if i >= 0 && i < len(cs.palette) {
					img.SetNRGBA(px, y, cs.palette[i])
				}
			default:
				img.SetNRGBA(px, y, cs.toColor(vals))
			}
		}
	}
	return img, nil
}

// decodeRanges returns the per-component Decode mapping. Indexed images
// decode to palette indices.
func decodeRanges(d []float64, cs colorSpace, maxVal float64) ([]float64, []float64) {
	dmin := make([]float64, cs.comps)
	dmax := make([]float64, cs.comps)
	for c := range dmin {
		dmax[c] = 1
		if cs.palette != nil {
			dmax[c] = maxVal
		}
		if len(d) >= 2*(c+1) {
			dmin[c], dmax[c] = d[2*c], d[2*c+1]
		}
	}
	return dmin, dmax
}

// sample reads the i-th bpc-bit sample from a row.
func sample(row []byte, i, bpc int) int {
	switch bpc {
	case 8:
		return int(row[i])
	case 16:
		return int(row[2*i])<<8 | int(row[2*i+1])
	}
	bit := i * bpc
	b := row[bit/8]
	shift := 8 - bpc - bit%8
	return int(b>>shift) & (1<<bpc - 1)
}

// withAlpha applies a soft mask, resampled to img's size.
func withAlpha(img, mask image.Image) image.Image {
	b, mb := img.Bounds(), mask.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		my := mb.Min.Y + (y-b.Min.Y)*mb.Dy()/b.Dy()
		for x := b.Min.X; x < b.Max.X; x++ {
			mx := mb.Min.X + (x-b.Min.X)*mb.Dx()/b.Dx()
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			a := color.GrayModel.Convert(mask.At(mx, my)).(color.Gray)
			c.A = uint8(int(c.A) * int(a.Y) / 255)
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// viaPDFCPU decodes a page image with pdfcpu. The pdfcpu context is built
// once per document and each page's images once per page.
func (s *imageSource) viaPDFCPU(page int, name string) (image.Image, error) {
	if !s.ctxTried {
		s.ctxTried = true
		s.ctxErr = errors.Guard(errors.ErrorTypeCorrupted, func() error {
			conf := model.NewDefaultConfiguration()
			conf.ValidationMode = model.ValidationRelaxed
			conf.Cmd = model.EXTRACTIMAGES
			ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(s.data), conf)
			if err != nil {
				return err
			}
			s.ctx = ctx
			return nil
		})
	}
	if s.ctxErr != nil {
		return nil, fmt.Errorf("pdfcpu: %w", s.ctxErr)
	}

	imgs, ok := s.byPage[page]
	if !ok {
		imgs = make(map[string]model.Image)
		err := errors.Guard(errors.ErrorTypePageExtraction, func() error {
			found, err := pdfcpu.ExtractPageImages(s.ctx, page, false)
			if err != nil {
				return err
			}
			for _, img := range found {
				imgs[img.Name] = img
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("pdfcpu: %w", err)
		}
		s.byPage[page] = imgs
	}

	img, ok := imgs[name]
	if !ok || img.Reader == nil {
		return nil, fmt.Errorf("pdfcpu: image %s not found on page %d", name, page)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(img); err != nil {
		return nil, err
	}
	if img.FileType == "tif" {
		return tiff.Decode(bytes.NewReader(buf.Bytes()))
	}
	out, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
	return out, err
}
