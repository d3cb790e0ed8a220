package extraction

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
	"github.com/ledongthuc/pdf"
)

// errUnsupportedFilter marks a stream whose filter chain cannot be decoded
// here; the caller falls back to another decoder.
type errUnsupportedFilter string

func (e errUnsupportedFilter) Error() string { return "unsupported filter: " + string(e) }

// filterParams are the DecodeParms entries the filters here understand.
type filterParams struct {
	predictor int
	columns   int
	bpc       int
	colors    int
	lzwLate   bool
}

// streamParams reads a DecodeParms dictionary of the object graph.
func streamParams(v pdf.Value) filterParams {
	early := v.Key("EarlyChange")
	return filterParams{
		predictor: int(v.Key("Predictor").Int64()),
		columns:   intOr(v.Key("Columns"), 1),
		bpc:       intOr(v.Key("BitsPerComponent"), 8),
		colors:    intOr(v.Key("Colors"), 1),
		lzwLate:   !early.IsNull() && early.Int64() != 1,
	}
}

// filterChain lists a stream's filters with their decode parameters.
func filterChain(stream pdf.Value) ([]string, []filterParams) {
	f := stream.Key("Filter")
	p := stream.Key("DecodeParms")
	switch f.Kind() {
	case pdf.Name:
		return []string{f.Name()}, []filterParams{streamParams(p)}
	case pdf.Array:
		names := make([]string, f.Len())
		params := make([]filterParams, f.Len())
		for i := range names {
			names[i] = f.Index(i).Name()
			var pv pdf.Value
			if p.Kind() == pdf.Array {
				pv = p.Index(i)
			}
			params[i] = streamParams(pv)
		}
		return names, params
	}
	return nil, nil
}

// decodeFilter applies one non-image filter.
func decodeFilter(name string, data []byte, params filterParams) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		out, err := inflate(data)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, params)
	case "LZWDecode", "LZW":
		r := lzw.NewReader(bytes.NewReader(data), !params.lzwLate)
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("lzw decode error: %w", err)
		}
		return applyPredictor(out, params)
	case "ASCIIHexDecode", "AHx":
		return asciiHex(data)
	case "ASCII85Decode", "A85":
		return asciiBase85(data)
	case "RunLengthDecode", "RL":
		return runLength(data)
	}
	return nil, errUnsupportedFilter(name)
}

func inflate(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate decode error: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("flate decode error: %w", err)
	}
	// Truncated streams are common; keep what inflated.
	return out, nil
}

func applyPredictor(data []byte, p filterParams) ([]byte, error) {
	switch {
	case p.predictor <= 1:
		return data, nil
	case p.predictor == 2:
		return tiffPredictor(data, p.columns, p.bpc, p.colors)
	case p.predictor >= 10:
		return pngPredictor(data, p.columns, p.bpc, p.colors)
	}
	return data, nil
}

func intOr(v pdf.Value, def int) int {
	if n := int(v.Int64()); n > 0 {
		return n
	}
	return def
}

func tiffPredictor(data []byte, columns, bpc, colors int) ([]byte, error) {
	if bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor only supports 8 bits per component")
	}
	rowSize := columns * colors
	out := append([]byte(nil), data...)
	for start := 0; start+rowSize <= len(out); start += rowSize {
		for i := colors; i < rowSize; i++ {
			out[start+i] += out[start+i-colors]
		}
	}
	return out, nil
}

func pngPredictor(data []byte, columns, bpc, colors int) ([]byte, error) {
	bpp := (bpc*colors + 7) / 8
	rowSize := (columns*bpc*colors + 7) / 8
	stride := rowSize + 1
	rows := len(data) / stride
	out := make([]byte, rows*rowSize)
	prev := make([]byte, rowSize)

	for row := 0; row < rows; row++ {
		src := data[row*stride+1 : (row+1)*stride]
		dst := out[row*rowSize : (row+1)*rowSize]
		copy(dst, src)
		switch data[row*stride] {
		case 0:
		case 1:
			for i := bpp; i < rowSize; i++ {
				dst[i] += dst[i-bpp]
			}
		case 2:
			for i := range dst {
				dst[i] += prev[i]
			}
		case 3:
			for i := range dst {
				var left byte
				if i >= bpp {
					left = dst[i-bpp]
				}
				dst[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4:
			for i := range dst {
				var left, upLeft byte
				if i >= bpp {
					left, upLeft = dst[i-bpp], prev[i-bpp]
				}
				dst[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG predictor: %d", data[row*stride])
		}
		prev = dst
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func asciiHex(data []byte) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break
		}
		if (b >= '0' && b <= '9') || (b >= 'A' && b <= 'F') || (b >= 'a' && b <= 'f') {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("ASCII hex decode error: %w", err)
	}
	return out, nil
}

func asciiBase85(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	out := make([]byte, 4*len(data)+4)
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, fmt.Errorf("ASCII85 decode error: %w", err)
	}
	return out[:n], nil
}

func runLength(data []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + n + 1
			if end > len(data) {
				return nil, fmt.Errorf("run length literal overruns data")
			}
			out = append(out, data[i:end]...)
			i = end
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("run length repeat overruns data")
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
	}
	return out, nil
}
