package docmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_OrderAndAccess(t *testing.T) {
	d := NewDocument()
	d.Set("b", int64(1))
	d.Set("a", "x")
	d.Set("c", nil)
	d.Set("b", int64(2))

	assert.Equal(t, []string{"b", "a", "c"}, d.Keys(), "re-setting keeps position")
	assert.Equal(t, []string{"a", "b", "c"}, d.SortedKeys())
	assert.Equal(t, 3, d.Len())

	v, ok := d.Get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	v, ok = d.Get("c")
	assert.True(t, ok, "null values are present")
	assert.Nil(t, v)
	assert.False(t, d.Has("missing"))

	assert.True(t, d.Delete("b"))
	assert.False(t, d.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, d.Keys())
	v, _ = d.Get("c")
	assert.Nil(t, v)
	d.Set("d", true)
	assert.Equal(t, `{"a":"x","c":null,"d":true}`, d.String())
}

func TestDocument_ZeroAndNil(t *testing.T) {
	var zero Document
	zero.Set("k", int64(1))
	assert.Equal(t, 1, zero.Len())

	var nilDoc *Document
	assert.Equal(t, 0, nilDoc.Len())
	assert.Nil(t, nilDoc.Keys())
	assert.Nil(t, nilDoc.Clone())
	assert.False(t, nilDoc.Has("k"))
	assert.False(t, nilDoc.Delete("k"))
	assert.True(t, nilDoc.Equal(NewDocument()))
}

func TestDocument_Range(t *testing.T) {
	d := DocumentOf("a", int64(1), "b", int64(2), "c", int64(3))
	var seen []string
	d.Range(func(k string, _ any) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestDocument_Lookup(t *testing.T) {
	d := DocumentOf(
		"stops", []any{DocumentOf("city", "A"), DocumentOf("city", "B")},
		"meta", DocumentOf("n", int64(2)),
	)

	tests := []struct {
		path []string
		want any
		ok   bool
	}{
		{[]string{"stops", "1", "city"}, "B", true},
		{[]string{"meta", "n"}, int64(2), true},
		{[]string{"stops", "2"}, nil, false},
		{[]string{"stops", "x"}, nil, false},
		{[]string{"meta", "n", "deeper"}, nil, false},
		{[]string{"missing"}, nil, false},
	}
	for _, tt := range tests {
		got, ok := d.Lookup(tt.path...)
		assert.Equal(t, tt.ok, ok, "%v", tt.path)
		assert.Equal(t, tt.want, got, "%v", tt.path)
	}

	self, ok := d.Lookup()
	assert.True(t, ok)
	assert.Same(t, d, self)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	inner := DocumentOf("x", int64(1))
	seq := []any{int64(1), DocumentOf("y", "z")}
	d := DocumentOf("inner", inner, "seq", seq)

	c := d.Clone()
	require.True(t, d.Equal(c))

	inner.Set("x", int64(99))
	seq[0] = int64(42)
	seq[1].(*Document).Set("y", "changed")

	assert.Equal(t, `{"inner":{"x":1},"seq":[1,{"y":"z"}]}`, c.String())
}

func TestDocument_Equal(t *testing.T) {
	a := DocumentOf("x", int64(1), "y", []any{"a", nil})
	b := DocumentOf("y", []any{"a", nil}, "x", int64(1))
	assert.True(t, a.Equal(b), "key order is ignored")

	assert.False(t, a.Equal(DocumentOf("x", int64(1))))
	assert.False(t, a.Equal(DocumentOf("x", 1.0, "y", []any{"a", nil})), "int and float differ")
	assert.False(t, a.Equal(DocumentOf("x", int64(1), "z", []any{"a", nil})))
	assert.False(t, ValuesEqual([]any{int64(1)}, []any{int64(1), int64(2)}))
	assert.False(t, ValuesEqual(DocumentOf(), []any{}))
}

func TestDocument_String(t *testing.T) {
	d := DocumentOf(
		"s", "q\"uote",
		"f", 0.5,
		"big", 1e21,
		"seq", []any{},
		"doc", (*Document)(nil),
		"bad", uint8(1),
	)
	assert.Equal(t, `{"s":"q\"uote","f":0.5,"big":1e+21,"seq":[],"doc":null,"bad":<invalid>}`, d.String())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    any
		want Kind
	}{
		{nil, KindNull},
		{true, KindBool},
		{int64(1), KindInt},
		{1.5, KindFloat},
		{"s", KindString},
		{NewDocument(), KindDocument},
		{(*Document)(nil), KindNull},
		{[]any{}, KindSequence},
		{1, KindInvalid},
		{[]string{}, KindInvalid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.v), "%#v", tt.v)
	}
	assert.Equal(t, "document", KindDocument.String())
	assert.Equal(t, "invalid", Kind(200).String())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(DocumentOf("a", []any{int64(1), DocumentOf("b", math.Inf(1))})))
	assert.False(t, Valid(DocumentOf("a", []any{int64(1), DocumentOf("b", int32(1))})))
	assert.False(t, Valid([]any{map[string]any{}}))
}

func TestID(t *testing.T) {
	id := NewID()
	assert.NotEqual(t, NilID, id)

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("not-an-id")
	assert.Error(t, err)
}

func TestApplySaveOptions(t *testing.T) {
	var got *bool
	o := ApplySaveOptions(WithAsync(true), nil, WithUpsert(true), OnComplete(func(ok bool) { got = &ok }))
	assert.True(t, o.Async)
	assert.True(t, o.Upsert)
	require.NotNil(t, o.OnComplete)
	o.OnComplete(true)
	require.NotNil(t, got)
	assert.True(t, *got)

	assert.Equal(t, SaveOptions{}, ApplySaveOptions())
}
