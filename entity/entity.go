package entity

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
	"github.com/wippyai/docmap/mapper"
	"github.com/wippyai/docmap/store"
)

// Attachable is implemented by entities embedding Base.
type Attachable interface {
	docmap.Referenceable
	Attach(owner any, coll store.Collection, m *mapper.Mapper)
}

type binding struct {
	owner  any
	coll   store.Collection
	mapper *mapper.Mapper
}

// Base is the embeddable identity and persistence binding of an entity.
// Bind it with Attach before saving.
type Base struct {
	ID docmap.ID `doc:"_id"`

	bind *binding
}

var _ Attachable = (*Base)(nil)

// Attach binds the entity to the struct embedding it, its collection and
// the mapper that encodes it. A zero ID is replaced with a new one.
func (b *Base) Attach(owner any, coll store.Collection, m *mapper.Mapper) {
	if b.ID == docmap.NilID {
		b.ID = docmap.NewID()
	}
	b.bind = &binding{owner: owner, coll: coll, mapper: m}
}

// Attached reports whether Attach has been called.
func (b *Base) Attached() bool {
	return b.bind != nil
}

// UniqueID returns the entity's identifier.
func (b *Base) UniqueID() docmap.ID {
	return b.ID
}

// Save writes the entity to its collection. Unattached entities are not
// saved: Save returns false and the completion callback receives false.
// With WithAsync the write runs in the background and Save reports
// whether it was scheduled.
func (b *Base) Save(ctx context.Context, opts ...docmap.SaveOption) bool {
	o := docmap.ApplySaveOptions(opts...)

	bind := b.bind
	if bind == nil {
		Logger().Debug("save of unattached entity", zap.Stringer("id", b.ID))
		complete(o, false)
		return false
	}

	if o.Async {
		go func() {
			complete(o, b.save(ctx, bind, o.Upsert))
		}()
		return true
	}

	saved := b.save(ctx, bind, o.Upsert)
	complete(o, saved)
	return saved
}

// SaveSync writes the entity and waits for the outcome.
func (b *Base) SaveSync(ctx context.Context, upsert bool) bool {
	return b.Save(ctx, docmap.WithUpsert(upsert))
}

// SaveAsync upserts the entity in the background and reports the outcome
// to cb, which may be nil.
func (b *Base) SaveAsync(ctx context.Context, cb func(saved bool)) bool {
	return b.Save(ctx, docmap.WithAsync(true), docmap.WithUpsert(true), docmap.OnComplete(cb))
}

func (b *Base) save(ctx context.Context, bind *binding, upsert bool) bool {
	log := Logger().With(
		zap.String("collection", bind.coll.Name()),
		zap.Stringer("id", b.ID))

	doc, err := bind.mapper.EncodeContext(ctx, bind.owner)
	if err != nil {
		log.Warn("encode entity", zap.Error(err))
		return false
	}
	if _, err := bind.coll.Replace(ctx, b.ID.String(), doc, upsert); err != nil {
		log.Warn("save entity", zap.Error(err))
		return false
	}
	return true
}

func complete(o docmap.SaveOptions, saved bool) {
	if o.OnComplete != nil {
		o.OnComplete(saved)
	}
}

// Delete removes the entity from its collection and reports whether it
// was stored.
func (b *Base) Delete(ctx context.Context) (bool, error) {
	if b.bind == nil {
		return false, unattached()
	}
	return b.bind.coll.Delete(ctx, b.ID.String())
}

// AsDocument encodes the entity as it would be saved.
func (b *Base) AsDocument() (*docmap.Document, error) {
	if b.bind == nil {
		return nil, unattached()
	}
	return b.bind.mapper.Encode(b.bind.owner)
}

func unattached() error {
	return errors.InvalidInput(errors.PhaseStore, "entity is not attached to a collection")
}

// Load finds the document stored under id and constructs a T from it.
// When T implements Attachable the result is attached to coll.
func Load[T any](ctx context.Context, coll store.Collection, m *mapper.Mapper, services docmap.Services, id docmap.ID) (T, error) {
	var zero T
	doc, err := coll.Find(ctx, id.String())
	if err != nil {
		return zero, err
	}
	v, err := mapper.Decode[T](m, doc, services)
	if err != nil {
		return zero, err
	}
	if a, ok := any(v).(Attachable); ok && !isNil(v) {
		a.Attach(v, coll, m)
	}
	return v, nil
}

// Resolver returns a reference resolver loading T from collection. The
// decode call's services must provide a store.Store and a *mapper.Mapper.
func Resolver[T any](collection string) func(docmap.Services, docmap.ID) (T, error) {
	return func(services docmap.Services, id docmap.ID) (T, error) {
		var zero T
		if services == nil {
			return zero, errors.NotFound(errors.PhaseRegistry, "service", "store.Store")
		}
		st, ok := lookup[store.Store](services)
		if !ok {
			return zero, errors.NotFound(errors.PhaseRegistry, "service", "store.Store")
		}
		m, ok := lookup[*mapper.Mapper](services)
		if !ok {
			return zero, errors.NotFound(errors.PhaseRegistry, "service", "*mapper.Mapper")
		}
		return Load[T](context.Background(), st.Collection(collection), m, services, id)
	}
}

func lookup[S any](services docmap.Services) (S, bool) {
	var zero S
	v, ok := services.Lookup(reflect.TypeFor[S]())
	if !ok {
		return zero, false
	}
	s, ok := v.(S)
	return s, ok
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
