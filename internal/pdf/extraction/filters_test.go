package extraction

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFilter(t *testing.T) {
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	w.Write([]byte("hello flate"))
	w.Close()

	tests := []struct {
		name    string
		filter  string
		input   []byte
		want    string
		wantErr bool
	}{
		{name: "flate", filter: "FlateDecode", input: z.Bytes(), want: "hello flate"},
		{name: "hex", filter: "ASCIIHexDecode", input: []byte("48 65 6C6C 6F>"), want: "Hello"},
		{name: "hex odd digit", filter: "AHx", input: []byte("414>"), want: "A@"},
		{name: "ascii85", filter: "ASCII85Decode", input: []byte("<~87cURDZ~>"), want: "Hello"},
		{name: "run length literal", filter: "RunLengthDecode", input: []byte{2, 'a', 'b', 'c', 128}, want: "abc"},
		{name: "run length repeat", filter: "RL", input: []byte{254, 'z', 0, '!', 128}, want: "zzz!"},
		{name: "run length overrun", filter: "RL", input: []byte{5, 'a'}, wantErr: true},
		{name: "unsupported", filter: "JBIG2Decode", input: []byte{1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFilter(tt.filter, tt.input, filterParams{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestPNGPredictor(t *testing.T) {
	// two rows of three bytes: Sub then Up
	data := []byte{
		1, 10, 5, 5,
		2, 1, 1, 1,
	}
	got, err := pngPredictor(data, 3, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 15, 20, 11, 16, 21}, got)

	_, err = pngPredictor([]byte{9, 0, 0, 0}, 3, 8, 1)
	assert.Error(t, err)
}

func TestTIFFPredictor(t *testing.T) {
	got, err := tiffPredictor([]byte{1, 1, 1, 5, 2, 2}, 3, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 5, 7, 9}, got)

	_, err = tiffPredictor([]byte{1}, 1, 4, 1)
	assert.Error(t, err)
}

func TestPaeth(t *testing.T) {
	assert.Equal(t, byte(10), paeth(10, 20, 20))
	assert.Equal(t, byte(20), paeth(10, 20, 10))
}
