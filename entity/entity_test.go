package entity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/mapper"
	"github.com/wippyai/docmap/registry"
	"github.com/wippyai/docmap/store"
	"github.com/wippyai/docmap/store/memstore"
)

type Account struct {
	Base
	Owner string
}

type Wallet struct {
	Label   string
	Account *Account `doc:",method,cascade"`
}

func newAccount(t *testing.T, coll store.Collection, m *mapper.Mapper, owner string) *Account {
	t.Helper()
	acc := &Account{Owner: owner}
	acc.Attach(acc, coll, m)
	return acc
}

func TestBase_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m := mapper.New()
	coll := memstore.New().Collection("accounts")

	acc := newAccount(t, coll, m, "ann")
	require.NotEqual(t, docmap.NilID, acc.UniqueID(), "Attach assigns an identifier")
	require.True(t, acc.Attached())

	require.True(t, acc.SaveSync(ctx, true))

	stored, err := coll.Find(ctx, acc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`{"_id":"%s","owner":"ann"}`, acc.ID), stored.String())

	loaded, err := Load[*Account](ctx, coll, m, nil, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, loaded.ID)
	assert.Equal(t, "ann", loaded.Owner)
	assert.True(t, loaded.Attached(), "loaded entities are attached to their collection")

	loaded.Owner = "bob"
	require.True(t, loaded.SaveSync(ctx, false))
	stored, err = coll.Find(ctx, acc.ID.String())
	require.NoError(t, err)
	owner, _ := stored.Get("owner")
	assert.Equal(t, "bob", owner)
}

func TestBase_AttachKeepsExistingID(t *testing.T) {
	id := docmap.NewID()
	acc := &Account{Base: Base{ID: id}}
	acc.Attach(acc, memstore.New().Collection("c"), mapper.New())
	assert.Equal(t, id, acc.UniqueID())
}

func TestBase_SaveWithoutUpsert(t *testing.T) {
	ctx := context.Background()
	acc := newAccount(t, memstore.New().Collection("accounts"), mapper.New(), "ann")

	var outcome *bool
	saved := acc.Save(ctx, docmap.OnComplete(func(ok bool) { outcome = &ok }))
	assert.False(t, saved, "a missing record is not created without upsert")
	require.NotNil(t, outcome)
	assert.False(t, *outcome)
}

func TestBase_Unattached(t *testing.T) {
	ctx := context.Background()
	var acc Account

	calls := 0
	saved := acc.Save(ctx, docmap.WithUpsert(true), docmap.OnComplete(func(ok bool) {
		calls++
		assert.False(t, ok)
	}))
	assert.False(t, saved)
	assert.Equal(t, 1, calls)

	assert.False(t, acc.SaveAsync(ctx, nil))

	_, err := acc.Delete(ctx)
	assert.Error(t, err)
	_, err = acc.AsDocument()
	assert.Error(t, err)
}

func TestBase_SaveAsync(t *testing.T) {
	ctx := context.Background()
	coll := memstore.New().Collection("accounts")
	acc := newAccount(t, coll, mapper.New(), "ann")

	done := make(chan bool, 1)
	require.True(t, acc.SaveAsync(ctx, func(ok bool) { done <- ok }))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("async save never completed")
	}

	_, err := coll.Find(ctx, acc.ID.String())
	require.NoError(t, err)
}

func TestBase_DeleteAndAsDocument(t *testing.T) {
	ctx := context.Background()
	coll := memstore.New().Collection("accounts")
	acc := newAccount(t, coll, mapper.New(), "ann")

	doc, err := acc.AsDocument()
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "owner"}, doc.Keys())

	deleted, err := acc.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, deleted, "never saved")

	require.True(t, acc.SaveSync(ctx, true))
	deleted, err = acc.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = Load[*Account](ctx, coll, mapper.New(), nil, acc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolver_CascadeAndReferences(t *testing.T) {
	ctx := context.Background()
	m := mapper.New()
	require.NoError(t, mapper.RegisterReference(m, Resolver[*Account]("accounts")))

	st := memstore.New()
	reg := registry.New()
	require.NoError(t, registry.Provide[store.Store](reg, st))
	require.NoError(t, reg.Register(m))

	acc := newAccount(t, st.Collection("accounts"), m, "ann")

	doc, err := m.EncodeContext(ctx, &Wallet{Label: "w", Account: acc})
	require.NoError(t, err)
	ref, _ := doc.Get("account")
	assert.Equal(t, acc.ID.String(), ref)

	_, err = st.Collection("accounts").Find(ctx, acc.ID.String())
	require.NoError(t, err, "cascade saved the referenced account")

	w, err := mapper.Decode[*Wallet](m, doc, reg)
	require.NoError(t, err)
	require.NotNil(t, w.Account)
	assert.Equal(t, "w", w.Label)
	assert.Equal(t, acc.ID, w.Account.ID)
	assert.Equal(t, "ann", w.Account.Owner)
}

func TestResolver_MissingServices(t *testing.T) {
	resolve := Resolver[*Account]("accounts")

	_, err := resolve(nil, docmap.NewID())
	assert.Error(t, err)

	reg := registry.New()
	require.NoError(t, registry.Provide[store.Store](reg, memstore.New()))
	_, err = resolve(reg, docmap.NewID())
	assert.Error(t, err, "no mapper registered")

	require.NoError(t, reg.Register(mapper.New()))
	_, err = resolve(reg, docmap.NewID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
