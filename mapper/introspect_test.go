package mapper

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/docmap/errors"
)

func TestDefaultKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Name", "name"},
		{"ID", "id"},
		{"URL", "url"},
		{"HTTPPort", "httpPort"},
		{"CreatedAt", "createdAt"},
		{"X", "x"},
		{"already", "already"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultKey(tt.in))
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag     string
		want    tagOptions
		wantErr bool
	}{
		{tag: "", want: tagOptions{}},
		{tag: "-", want: tagOptions{skip: true}},
		{tag: "-,", want: tagOptions{key: "-"}},
		{tag: "full_name", want: tagOptions{key: "full_name"}},
		{tag: ",ignore", want: tagOptions{strategy: Ignore}},
		{tag: "acc,method,cascade", want: tagOptions{key: "acc", strategy: Method, cascade: CascadeSync}},
		{tag: ",method,cascade=async", want: tagOptions{strategy: Method, cascade: CascadeAsync}},
		{tag: ",target=square", want: tagOptions{target: "square"}},
		{tag: ",object,method", wantErr: true},
		{tag: ",cascade=later", wantErr: true},
		{tag: ",target=", wantErr: true},
		{tag: ",omitempty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := parseTag(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe_Person(t *testing.T) {
	m := New()
	desc, err := m.Describe(reflect.TypeFor[*Person]())
	require.NoError(t, err)

	assert.Equal(t, reflect.TypeFor[Person](), desc.Type)
	assert.Equal(t, []string{"name", "age", "tags", "address"}, desc.Keys())

	tags, ok := desc.Field("tags")
	require.True(t, ok)
	assert.Equal(t, List, tags.Arity)
	assert.Equal(t, reflect.TypeFor[string](), tags.Elem)
	assert.Equal(t, Object, tags.Strategy)

	addr, ok := desc.Field("address")
	require.True(t, ok)
	assert.Equal(t, Scalar, addr.Arity)
	assert.Equal(t, reflect.TypeFor[*Address](), addr.Elem)
	assert.Equal(t, reflect.TypeFor[Address](), addr.Target)

	cache, ok := desc.Field("internalCache")
	require.True(t, ok)
	assert.Equal(t, Ignore, cache.Strategy)
}

func TestDescribe_Exclusions(t *testing.T) {
	m := New()
	desc, err := m.Describe(reflect.TypeFor[Mixed]())
	require.NoError(t, err)

	assert.Equal(t, []string{"visible", "alias"}, desc.Keys())
	for _, key := range []string{"hidden", "skip", "handler", "bad", "renamed"} {
		_, ok := desc.Field(key)
		assert.False(t, ok, key)
	}
	ignored, ok := desc.Field("ignored")
	require.True(t, ok)
	assert.Equal(t, Ignore, ignored.Strategy)
}

func TestDescribe_AncestorWalk(t *testing.T) {
	t.Run("full walk", func(t *testing.T) {
		desc, err := New().Describe(reflect.TypeFor[Article]())
		require.NoError(t, err)
		assert.Equal(t, []string{"_id", "created", "editor", "title"}, desc.Keys())

		id, _ := desc.Field("_id")
		assert.Equal(t, []int{0, 0, 0}, id.Index)
	})

	t.Run("single level", func(t *testing.T) {
		desc, err := New(WithAncestorDepth(1)).Describe(reflect.TypeFor[Article]())
		require.NoError(t, err)
		assert.Equal(t, []string{"editor", "title"}, desc.Keys())
	})

	t.Run("shadowing", func(t *testing.T) {
		desc, err := New().Describe(reflect.TypeFor[Derived]())
		require.NoError(t, err)
		assert.Equal(t, []string{"kind", "name"}, desc.Keys())

		name, _ := desc.Field("name")
		assert.Equal(t, []int{1}, name.Index)
	})

	t.Run("ambiguous names dropped", func(t *testing.T) {
		desc, err := New().Describe(reflect.TypeFor[Ambiguous]())
		require.NoError(t, err)
		assert.Equal(t, []string{"size"}, desc.Keys())
	})

	t.Run("embedded pointer", func(t *testing.T) {
		desc, err := New().Describe(reflect.TypeFor[Envelope]())
		require.NoError(t, err)
		assert.Equal(t, []string{"version", "body"}, desc.Keys())
	})
}

func TestDescribe_Arity(t *testing.T) {
	desc, err := New().Describe(reflect.TypeFor[Numbers]())
	require.NoError(t, err)

	want := map[string]Arity{
		"small":  Scalar,
		"pair":   Array,
		"grid":   List,
		"scores": Map,
	}
	for key, arity := range want {
		f, ok := desc.Field(key)
		require.True(t, ok, key)
		assert.Equal(t, arity, f.Arity, key)
	}

	rec, err := New().Describe(reflect.TypeFor[Record]())
	require.NoError(t, err)
	id, _ := rec.Field("id")
	assert.Equal(t, Scalar, id.Arity, "identifiers are atomic even though they are arrays")
	ids, _ := rec.Field("ids")
	assert.Equal(t, List, ids.Arity)
}

func TestDescribe_Setter(t *testing.T) {
	desc, err := New().Describe(reflect.TypeFor[Temperature]())
	require.NoError(t, err)
	f, ok := desc.Field("celsius")
	require.True(t, ok)
	assert.True(t, f.HasSetter())

	desc, err = New().Describe(reflect.TypeFor[Person]())
	require.NoError(t, err)
	f, _ = desc.Field("name")
	assert.False(t, f.HasSetter())
}

func TestDescribe_Target(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterType("square", Square{}))

	desc, err := m.Describe(reflect.TypeFor[Drawing]())
	require.NoError(t, err)
	primary, ok := desc.Field("main")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[Square](), primary.Target)
	assert.Equal(t, reflect.TypeFor[Shape](), primary.Elem)

	// without the registration the fields cannot be resolved and are omitted
	desc, err = New().Describe(reflect.TypeFor[Drawing]())
	require.NoError(t, err)
	assert.Empty(t, desc.Keys())

	err = m.RegisterType("square", Point{})
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConvert, Kind: errors.KindRegistration})
}

func TestDescribe_Errors(t *testing.T) {
	m := New()

	_, err := m.Describe(nil)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDescribe, Kind: errors.KindNilPointer})

	_, err = m.Describe(reflect.TypeFor[int]())
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDescribe, Kind: errors.KindUnsupported})

	_, err = m.Describe(reflect.TypeFor[[]Person]())
	assert.Error(t, err)
}

func TestDescribe_CacheIdentity(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	results := make([]*TypeDescriptor, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			desc, err := m.Describe(reflect.TypeFor[Article]())
			assert.NoError(t, err)
			results[i] = desc
		}(i)
	}
	wg.Wait()

	for _, d := range results[1:] {
		assert.Same(t, results[0], d)
	}

	// recomputation is a pure function of the type
	fresh := m.describe(reflect.TypeFor[Article]())
	assert.Equal(t, results[0], fresh)
}

func TestDescribe_RegistrationDropsCache(t *testing.T) {
	m := New()

	before, err := m.Describe(reflect.TypeFor[Spot]())
	require.NoError(t, err)
	require.Len(t, before.Fields, 1)
	assert.Equal(t, Array, before.Fields[0].Arity)

	require.NoError(t, RegisterConverter(m,
		func(c Coords) (any, error) { return fmt.Sprintf("%g,%g", c[0], c[1]), nil },
		nil))

	after, err := m.Describe(reflect.TypeFor[Spot]())
	require.NoError(t, err)
	assert.Equal(t, Scalar, after.Fields[0].Arity, "a converter makes the array a single value")
	assert.Equal(t, after, m.describe(reflect.TypeFor[Spot]()))

	doc, err := m.Encode(Spot{At: Coords{1, 2.5}})
	require.NoError(t, err)
	assert.Equal(t, `{"at":"1,2.5"}`, doc.String())

	require.NoError(t, m.RegisterType("spot", Spot{}))
	again, err := m.Describe(reflect.TypeFor[Spot]())
	require.NoError(t, err)
	assert.NotSame(t, after, again)
	assert.Equal(t, after, again)
}
