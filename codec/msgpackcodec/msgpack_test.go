package msgpackcodec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
	"github.com/wippyai/docmap/errors"
)

func sample() *docmap.Document {
	return docmap.DocumentOf(
		"name", "Alice",
		"age", int64(30),
		"neg", int64(-70000),
		"big", int64(math.MaxInt64),
		"score", 2.0,
		"active", false,
		"nothing", nil,
		"tags", []any{"a", int64(1), 1.5},
		"empty", []any{},
		"address", docmap.DocumentOf("zip", "10001", "city", "X"),
	)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := New()
	in := sample()

	data, err := c.Encode(in)
	require.NoError(t, err)
	out, err := c.Decode(data)
	require.NoError(t, err)

	assert.True(t, in.Equal(out), "%s != %s", in, out)
	assert.Equal(t, in.Keys(), out.Keys())

	addr, _ := out.Get("address")
	assert.Equal(t, []string{"zip", "city"}, addr.(*docmap.Document).Keys())

	score, _ := out.Get("score")
	assert.IsType(t, float64(0), score)
	age, _ := out.Get("age")
	assert.IsType(t, int64(0), age)
}

func TestCodec_Compactness(t *testing.T) {
	data, err := New().Encode(docmap.DocumentOf("name", "compact", "value", int64(100)))
	require.NoError(t, err)
	assert.Less(t, len(data), 30)
}

func TestCodec_DecodeForeignEncoding(t *testing.T) {
	// values written by the stock marshaler decode as document values
	data, err := msgpack.Marshal(map[string]any{
		"u":     uint32(7),
		"f32":   float32(0.5),
		"bytes": []byte("raw"),
		"list":  []string{"x"},
	})
	require.NoError(t, err)

	doc, err := New().Decode(data)
	require.NoError(t, err)

	u, _ := doc.Get("u")
	assert.Equal(t, int64(7), u)
	f, _ := doc.Get("f32")
	assert.Equal(t, 0.5, f)
	b, _ := doc.Get("bytes")
	assert.Equal(t, "raw", b)
	l, _ := doc.Get("list")
	assert.Equal(t, []any{"x"}, l)
}

func TestCodec_DecodeErrors(t *testing.T) {
	arr, err := msgpack.Marshal([]int{1, 2})
	require.NoError(t, err)
	huge, err := msgpack.Marshal(map[string]any{"n": uint64(math.MaxUint64)})
	require.NoError(t, err)
	valid, err := New().Encode(docmap.DocumentOf("a", int64(1)))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"array", arr},
		{"invalid", []byte{0xFF, 0xFF, 0xFF}},
		{"overflow", huge},
		{"truncated", valid[:len(valid)-1]},
		{"trailing", append(append([]byte{}, valid...), 0x01)},
		{"non-string key", []byte{0x81, 0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Decode(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseCodec, Kind: errors.KindInvalidData})
		})
	}
}

func TestAppendValue(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeArrayLen(2))
	require.NoError(t, enc.EncodeString("header"))
	require.NoError(t, AppendValue(enc, docmap.DocumentOf("k", "v")))

	dec := msgpack.NewDecoder(&buf)
	v, err := ReadValue(dec)
	require.NoError(t, err)
	seq := v.([]any)
	require.Len(t, seq, 2)
	assert.Equal(t, "header", seq[0])
	assert.True(t, docmap.DocumentOf("k", "v").Equal(seq[1].(*docmap.Document)))

	assert.Error(t, AppendValue(enc, struct{}{}))
}

func TestCodec_Registered(t *testing.T) {
	c, err := codec.Lookup("msgpack")
	require.NoError(t, err)
	assert.Equal(t, "msgpack", c.Name())
}
