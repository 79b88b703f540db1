package natsstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec/jsoncodec"
	"github.com/wippyai/docmap/errors"
	"github.com/wippyai/docmap/store"
	"github.com/wippyai/docmap/store/memstore"
)

// bus is an in-process stand-in for a NATS connection.
type bus struct {
	mu       sync.Mutex
	handlers map[string]nats.MsgHandler
	inboxes  map[string]chan *nats.Msg
	seq      int
	silent   bool
}

func newBus() *bus {
	return &bus{
		handlers: make(map[string]nats.MsgHandler),
		inboxes:  make(map[string]chan *nats.Msg),
	}
}

func (b *bus) QueueSubscribe(subj, _ string, cb nats.MsgHandler) (*nats.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[strings.TrimSuffix(subj, ">")] = cb
	return nil, nil
}

func (b *bus) Publish(subj string, data []byte) error {
	b.mu.Lock()
	ch, ok := b.inboxes[subj]
	b.mu.Unlock()
	if ok {
		ch <- &nats.Msg{Subject: subj, Data: data}
	}
	return nil
}

func (b *bus) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	b.mu.Lock()
	var handler nats.MsgHandler
	for prefix, h := range b.handlers {
		if strings.HasPrefix(subj, prefix) {
			handler = h
		}
	}
	b.seq++
	inbox := fmt.Sprintf("_INBOX.%d", b.seq)
	ch := make(chan *nats.Msg, 1)
	b.inboxes[inbox] = ch
	silent := b.silent
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.inboxes, inbox)
		b.mu.Unlock()
	}()

	if handler == nil {
		return nil, nats.ErrNoResponders
	}
	if !silent {
		go handler(&nats.Msg{Subject: subj, Reply: inbox, Data: data})
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func setup(t *testing.T, opts ...Option) (*Store, *memstore.Store, *bus) {
	t.Helper()
	b := newBus()
	backend := memstore.New()
	srv := NewServer(b, backend, opts...)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Close() })
	return New(b, opts...), backend, b
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client, backend, _ := setup(t)
	people := client.Collection("people")
	assert.Equal(t, "people", people.Name())

	doc := docmap.DocumentOf(
		"name", "Alice",
		"age", int64(30),
		"tags", []any{"a", "b"},
		"address", docmap.DocumentOf("city", "X"),
	)
	require.NoError(t, people.Insert(ctx, "a1", doc))

	got, err := people.Find(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, doc.Equal(got), "%s != %s", doc, got)
	assert.Equal(t, doc.Keys(), got.Keys())

	stored, err := backend.Collection("people").Find(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, doc.Equal(stored))

	ids, err := people.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids)
}

func TestStore_ErrorsKeepTheirKind(t *testing.T) {
	ctx := context.Background()
	client, _, _ := setup(t)
	c := client.Collection("c")

	_, err := c.Find(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, c.Insert(ctx, "x", docmap.NewDocument()))
	err = c.Insert(ctx, "x", docmap.NewDocument())
	assert.ErrorIs(t, err, store.ErrExists)
	assert.Contains(t, err.Error(), "c/x")

	_, err = c.Replace(ctx, "y", docmap.NewDocument(), false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	client, _, _ := setup(t)
	c := client.Collection("c")

	created, err := c.Replace(ctx, "x", docmap.DocumentOf("v", int64(1)), true)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Replace(ctx, "x", docmap.DocumentOf("v", int64(2)), true)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := c.Find(ctx, "x")
	require.NoError(t, err)
	v, _ := got.Get("v")
	assert.Equal(t, int64(2), v)

	deleted, err := c.Delete(ctx, "x")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete(ctx, "x")
	require.NoError(t, err)
	assert.False(t, deleted)

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	client, _, _ := setup(t)

	invalid := &errors.Error{Phase: errors.PhaseStore, Kind: errors.KindInvalidInput}

	err := client.Collection("c").Insert(ctx, "", docmap.NewDocument())
	assert.ErrorIs(t, err, invalid)
	err = client.Collection("c").Insert(ctx, "x", nil)
	assert.ErrorIs(t, err, invalid)

	for _, name := range []string{"", "a.b", "a*", "a>", "a b"} {
		_, err := client.Collection(name).Find(ctx, "x")
		assert.ErrorIs(t, err, invalid, "collection %q", name)
	}
}

func TestStore_Closed(t *testing.T) {
	client, _, _ := setup(t)
	require.NoError(t, client.Close())

	_, err := client.Collection("c").Find(context.Background(), "x")
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestStore_Timeout(t *testing.T) {
	client, _, b := setup(t, WithTimeout(20*time.Millisecond))
	b.mu.Lock()
	b.silent = true
	b.mu.Unlock()

	_, err := client.Collection("c").Find(context.Background(), "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_NoServer(t *testing.T) {
	client := New(newBus())
	_, err := client.Collection("c").Find(context.Background(), "x")
	assert.ErrorIs(t, err, nats.ErrNoResponders)
}

func TestStore_CustomCodecAndPrefix(t *testing.T) {
	ctx := context.Background()
	client, _, b := setup(t, WithCodec(jsoncodec.New()), WithSubjectPrefix("app.docs"))

	b.mu.Lock()
	_, ok := b.handlers["app.docs."]
	b.mu.Unlock()
	assert.True(t, ok, "server subscribes under the custom prefix")

	doc := docmap.DocumentOf("ratio", 0.5, "n", int64(3))
	require.NoError(t, client.Collection("c").Insert(ctx, "x", doc))
	got, err := client.Collection("c").Find(ctx, "x")
	require.NoError(t, err)
	assert.True(t, doc.Equal(got))
}

func TestServer_Dispatch(t *testing.T) {
	ctx := context.Background()
	srv := NewServer(newBus(), memstore.New())

	reply := srv.Dispatch(ctx, []byte{0xc1})
	assert.False(t, reply.OK)
	assert.Equal(t, string(errors.KindInvalidData), reply.Kind)

	data, err := msgpack.Marshal(&Request{Op: "drop", Collection: "c"})
	require.NoError(t, err)
	reply = srv.Dispatch(ctx, data)
	assert.False(t, reply.OK)
	assert.Equal(t, string(errors.KindUnsupported), reply.Kind)

	data, err = msgpack.Marshal(&Request{Op: OpIDs, Collection: "c"})
	require.NoError(t, err)
	reply = srv.Dispatch(ctx, data)
	assert.True(t, reply.OK)
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	client, _, _ := setup(t)
	c := client.Collection("c")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if _, err := c.Replace(ctx, id, docmap.DocumentOf("i", int64(i)), true); err != nil {
				t.Errorf("Replace failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 16)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "docmap.store.people.find", subject(DefaultSubjectPrefix, "people", OpFind))
}
