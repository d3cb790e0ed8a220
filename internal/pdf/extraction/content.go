package extraction

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// contentOp is one operator of a content stream with its operands. BI
// operators carry the inline image that follows them.
type contentOp struct {
	name   string
	args   []types.Object
	inline *inlineImage
}

// inlineImage is a BI ... ID ... EI sequence: the image dictionary with
// its keys as written and the undecoded sample data.
type inlineImage struct {
	dict types.Dict
	data []byte
}

// token is an operand, or an operator keyword when op is set. A null
// operand is a token with neither.
type token struct {
	obj types.Object
	op  string
}

// contentLexer splits a content stream into tokens. Composite operands
// (names, strings, arrays, dictionaries) are parsed with pdfcpu; numbers
// and keywords are read here, since a bare "0 0 RG" would otherwise parse
// as an indirect reference.
type contentLexer struct {
	src  string
	rest string
}

// parseContent calls fn for every operator in data, in order. Operands
// left over at the end of the stream are dropped.
func parseContent(data []byte, fn func(contentOp) error) error {
	lx := &contentLexer{src: string(data), rest: string(data)}
	var args []types.Object
	for {
		tok, ok, err := lx.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if tok.op == "" {
			args = append(args, tok.obj)
			continue
		}
		op := contentOp{name: tok.op, args: args}
		if tok.op == "BI" {
			if op.inline, err = lx.inlineImage(); err != nil {
				return err
			}
		}
		if err := fn(op); err != nil {
			return err
		}
		args = nil
	}
}

func (lx *contentLexer) offset() int { return len(lx.src) - len(lx.rest) }

func (lx *contentLexer) errorf(format string, a ...any) error {
	return fmt.Errorf("content stream offset %d: %s", lx.offset(), fmt.Sprintf(format, a...))
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// skipSpace drops whitespace and comments.
func (lx *contentLexer) skipSpace() {
	for len(lx.rest) > 0 {
		switch c := lx.rest[0]; {
		case isSpace(c):
			lx.rest = lx.rest[1:]
		case c == '%':
			i := strings.IndexAny(lx.rest, "\r\n")
			if i < 0 {
				lx.rest = ""
				return
			}
			lx.rest = lx.rest[i:]
		default:
			return
		}
	}
}

func (lx *contentLexer) next() (token, bool, error) {
	for {
		lx.skipSpace()
		if lx.rest == "" {
			return token{}, false, nil
		}
		switch c := lx.rest[0]; c {
		case '/', '(', '[':
			return lx.object()
		case '<':
			if strings.HasPrefix(lx.rest, "<<") {
				return lx.object()
			}
			return lx.hexString()
		case ')', ']', '>', '{', '}':
			lx.rest = lx.rest[1:]
			continue
		}
		return lx.word(), true, nil
	}
}

func (lx *contentLexer) object() (token, bool, error) {
	off := lx.offset()
	obj, err := model.ParseObject(&lx.rest)
	if err != nil {
		return token{}, false, fmt.Errorf("content stream offset %d: %w", off, err)
	}
	return token{obj: obj}, true, nil
}

// hexString reads <...> leniently: whitespace is ignored and an odd digit
// count is padded with zero.
func (lx *contentLexer) hexString() (token, bool, error) {
	end := strings.IndexByte(lx.rest, '>')
	if end < 0 {
		return token{}, false, lx.errorf("unterminated hex string")
	}
	b, err := asciiHex([]byte(lx.rest[1:end]))
	if err != nil {
		return token{}, false, lx.errorf("%v", err)
	}
	lx.rest = lx.rest[end+1:]
	return token{obj: types.NewHexLiteral(b)}, true, nil
}

// word reads a number or keyword.
func (lx *contentLexer) word() token {
	i := 0
	for i < len(lx.rest) && !isSpace(lx.rest[i]) && !isDelim(lx.rest[i]) {
		i++
	}
	if i == 0 {
		i = 1
	}
	w := lx.rest[:i]
	lx.rest = lx.rest[i:]

	if isNumberish(w) {
		if n, err := strconv.Atoi(w); err == nil {
			return token{obj: types.Integer(n)}
		}
		if f, err := strconv.ParseFloat(w, 64); err == nil {
			return token{obj: types.Float(f)}
		}
		// malformed numbers such as "--1" or "1.2.3" read as zero
		return token{obj: types.Integer(0)}
	}
	switch w {
	case "true":
		return token{obj: types.Boolean(true)}
	case "false":
		return token{obj: types.Boolean(false)}
	case "null":
		return token{}
	}
	return token{op: w}
}

func isNumberish(w string) bool {
	if w == "" {
		return false
	}
	for i := 0; i < len(w); i++ {
		if c := w[i]; (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' {
			return false
		}
	}
	return true
}

// inlineImage reads the dictionary and data of an inline image; the lexer
// is positioned just after BI. The data is delimited by the L or Length
// entry when present and plausible, else by the first EI keyword that
// stands alone between whitespace.
func (lx *contentLexer) inlineImage() (*inlineImage, error) {
	img := &inlineImage{dict: types.Dict{}}
	for {
		tok, ok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, lx.errorf("inline image without ID")
		}
		if tok.op == "ID" {
			break
		}
		key, isName := tok.obj.(types.Name)
		if !isName {
			return nil, lx.errorf("inline image key %v is not a name", tok.obj)
		}
		val, ok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if !ok || val.op != "" {
			return nil, lx.errorf("inline image entry /%s has no value", key)
		}
		img.dict[string(key)] = val.obj
	}

	// exactly one whitespace byte separates ID from the data
	if lx.rest != "" && isSpace(lx.rest[0]) {
		lx.rest = lx.rest[1:]
	}

	if n, ok := inlineLength(img.dict); ok && n <= len(lx.rest) {
		after := strings.TrimLeftFunc(lx.rest[n:], func(r rune) bool { return r < 0x80 && isSpace(byte(r)) })
		if endsImage(after, 0) {
			img.data = []byte(lx.rest[:n])
			lx.rest = after[2:]
			return img, nil
		}
	}

	for i := 0; i+2 <= len(lx.rest); i++ {
		if (i == 0 || isSpace(lx.rest[i-1])) && endsImage(lx.rest, i) {
			img.data = []byte(lx.rest[:i])
			lx.rest = lx.rest[i+2:]
			return img, nil
		}
	}
	return nil, lx.errorf("inline image without EI")
}

// endsImage reports whether s holds the EI keyword at i.
func endsImage(s string, i int) bool {
	if !strings.HasPrefix(s[i:], "EI") {
		return false
	}
	j := i + 2
	return j == len(s) || isSpace(s[j]) || isDelim(s[j])
}

func inlineLength(d types.Dict) (int, bool) {
	for _, k := range []string{"L", "Length"} {
		if n, ok := d[k].(types.Integer); ok && n >= 0 {
			return int(n), true
		}
	}
	return 0, false
}

// contentBytes returns the decoded content of a page or form. A page may
// split its content over an array of streams; the parts are joined with a
// newline so tokens never run together.
func contentBytes(v pdf.Value) ([]byte, error) {
	var buf bytes.Buffer
	read := func(s pdf.Value) error {
		if s.Kind() != pdf.Stream {
			return nil
		}
		rc := s.Reader()
		defer rc.Close()
		if _, err := io.Copy(&buf, rc); err != nil {
			return fmt.Errorf("reading content stream: %w", err)
		}
		buf.WriteByte('\n')
		return nil
	}
	if v.Kind() == pdf.Array {
		for i := 0; i < v.Len(); i++ {
			if err := read(v.Index(i)); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil
	}
	if err := read(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Operand accessors. Operands of the wrong type read as zero values.

func numberOf(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func nameOf(o types.Object) string {
	if n, ok := o.(types.Name); ok {
		return string(n)
	}
	return ""
}

// stringOf returns the bytes of a string operand, escapes resolved.
func stringOf(o types.Object) (string, bool) {
	switch v := o.(type) {
	case types.StringLiteral:
		b, err := types.Unescape(string(v))
		if err != nil {
			return "", false
		}
		return string(b), true
	case types.HexLiteral:
		b, err := v.Bytes()
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	return "", false
}
