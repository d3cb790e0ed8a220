package extraction

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectOps(t *testing.T, content string) []contentOp {
	t.Helper()
	var ops []contentOp
	require.NoError(t, parseContent([]byte(content), func(op contentOp) error {
		ops = append(ops, op)
		return nil
	}))
	return ops
}

func opNames(ops []contentOp) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.name
	}
	return names
}

func TestParseContent_Operands(t *testing.T) {
	ops := collectOps(t, "0 0 0 RG\n1.5 -.25 +3 w % comment (not a string\n/F1 12 Tf [(A) -120 (B)] TJ <48 65 6> Tj (a\\(b\\)c) Tj true null Do")
	require.Equal(t, []string{"RG", "w", "Tf", "TJ", "Tj", "Tj", "Do"}, opNames(ops))

	assert.Equal(t, []types.Object{types.Integer(0), types.Integer(0), types.Integer(0)}, ops[0].args)
	assert.Equal(t, []types.Object{types.Float(1.5), types.Float(-0.25), types.Integer(3)}, ops[1].args)
	assert.Equal(t, "F1", nameOf(ops[2].args[0]))

	arr, ok := ops[3].args[0].(types.Array)
	require.True(t, ok)
	require.Len(t, arr, 3)
	adj, ok := numberOf(arr[1])
	require.True(t, ok)
	assert.Equal(t, -120.0, adj)

	s, ok := stringOf(ops[4].args[0])
	require.True(t, ok)
	assert.Equal(t, "He`", s)

	s, ok = stringOf(ops[5].args[0])
	require.True(t, ok)
	assert.Equal(t, "a(b)c", s)

	require.Len(t, ops[6].args, 2)
	assert.Equal(t, types.Boolean(true), ops[6].args[0])
	assert.Nil(t, ops[6].args[1])
}

func TestParseContent_Dictionaries(t *testing.T) {
	ops := collectOps(t, "/Span <</MCID 3 /Alt (x)>> BDC EMC")
	require.Equal(t, []string{"BDC", "EMC"}, opNames(ops))
	d, ok := ops[0].args[1].(types.Dict)
	require.True(t, ok)
	assert.Equal(t, types.Integer(3), d["MCID"])
}

func TestParseContent_InlineImage(t *testing.T) {
	// sample bytes that look like content syntax must not be tokenized
	data := "(\x00(<[/%)"

	tests := []struct {
		name    string
		content string
	}{
		{"scan for EI", "q BI /W 2 /H 4 /CS /G /BPC 8 ID " + data + "\nEI Q BT (after) Tj ET"},
		{"length entry", "q BI /W 2 /H 4 /CS /G /BPC 8 /L 8 ID " + data + "\nEI Q BT (after) Tj ET"},
		{"full key names", "q BI /Width 2 /Height 4 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length 8 ID " + data + " EI Q BT (after) Tj ET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := collectOps(t, tt.content)
			require.Equal(t, []string{"q", "BI", "Q", "BT", "Tj", "ET"}, opNames(ops))

			img := ops[1].inline
			require.NotNil(t, img)
			assert.Equal(t, data, string(img.data[:len(data)]))

			s, ok := stringOf(ops[4].args[0])
			require.True(t, ok)
			assert.Equal(t, "after", s)
		})
	}
}

func TestParseContent_InlineImageWithWrongLength(t *testing.T) {
	// an /L that does not land on EI falls back to scanning
	ops := collectOps(t, "BI /W 1 /H 1 /L 99 ID \x80\nEI Q")
	require.Equal(t, []string{"BI", "Q"}, opNames(ops))
	assert.Equal(t, "\x80\n", string(ops[0].inline.data))
}

func TestParseContent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"inline image without EI", "BI /W 2 /H 2 ID \x00(\x00\x00 Q", "without EI"},
		{"inline image without ID", "BI /W 2 /H 2", "without ID"},
		{"inline image key not a name", "BI 2 /H 2 ID x EI", "not a name"},
		{"inline image key without value", "BI /W ID x EI", "has no value"},
		{"unterminated string", "BT (abc Tj ET", "offset 3"},
		{"unterminated hex string", "<414243 Tj", "unterminated hex string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseContent([]byte(tt.content), func(contentOp) error { return nil })
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInlineInfo(t *testing.T) {
	d := types.Dict{
		"W": types.Integer(3), "H": types.Integer(2), "BPC": types.Integer(4),
		"CS": types.Array{types.Name("I"), types.Name("RGB"), types.Integer(1), types.NewHexLiteral([]byte{0, 0, 0, 255, 0, 0})},
		"F":  types.Array{types.Name("AHx"), types.Name("Fl")},
		"DP": types.Array{nil, types.Dict{"Predictor": types.Integer(12), "Columns": types.Integer(3)}},
		"D":  types.Array{types.Integer(0), types.Integer(15)},
	}
	info, err := inlineInfo(d, pdf.Value{})
	require.NoError(t, err)
	assert.Equal(t, 3, info.width)
	assert.Equal(t, 2, info.height)
	assert.Equal(t, 4, info.bpc)
	require.NoError(t, info.csErr)
	require.Len(t, info.cs.palette, 2)
	assert.Equal(t, uint8(255), info.cs.palette[1].R)
	assert.Equal(t, []string{"AHx", "Fl"}, info.filters)
	assert.Equal(t, 12, info.params[1].predictor)
	assert.Equal(t, 3, info.params[1].columns)
	assert.Equal(t, 0, info.params[0].predictor)
	assert.Equal(t, []float64{0, 15}, info.decode)

	_, err = inlineInfo(types.Dict{"W": types.Integer(3)}, pdf.Value{})
	assert.Error(t, err)

	mask, err := inlineInfo(types.Dict{"W": types.Integer(8), "H": types.Integer(1), "IM": types.Boolean(true)}, pdf.Value{})
	require.NoError(t, err)
	img, err := decodeImage(mask, []byte{0b00001111})
	require.NoError(t, err)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(7, 0).RGBA()
	assert.Zero(t, a)
}
