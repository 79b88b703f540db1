package mapper

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/docmap/errors"
)

// DefaultTagName is the struct tag read by the introspector.
const DefaultTagName = "doc"

// maxDepth bounds nesting while encoding or constructing.
const maxDepth = 100

// Mapper converts Go values to and from documents.
// A Mapper is safe for concurrent use once registration is finished.
type Mapper struct {
	logger *zap.Logger
	cache  sync.Map // reflect.Type -> *TypeDescriptor
	group  singleflight.Group

	mu         sync.RWMutex
	converters map[reflect.Type]*converter
	factories  map[reflect.Type]*factory
	named      map[string]reflect.Type

	tagName       string
	ancestorDepth int
	strict        bool
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger used for recovered per-field failures.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStrict makes the first per-field failure abort the whole call.
func WithStrict(strict bool) Option {
	return func(m *Mapper) {
		m.strict = strict
	}
}

// WithTagName changes the struct tag read for field declarations.
func WithTagName(name string) Option {
	return func(m *Mapper) {
		if name != "" {
			m.tagName = name
		}
	}
}

// WithAncestorDepth limits how many levels of embedded structs contribute
// fields. Zero or less walks every level; 1 includes only the directly
// embedded structs.
func WithAncestorDepth(depth int) Option {
	return func(m *Mapper) {
		m.ancestorDepth = depth
	}
}

// New creates a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		logger:     Logger(),
		converters: make(map[reflect.Type]*converter),
		factories:  make(map[reflect.Type]*factory),
		named:      make(map[string]reflect.Type),
		tagName:    DefaultTagName,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Strict reports whether per-field failures abort encode and decode calls.
func (m *Mapper) Strict() bool {
	return m.strict
}

// RegisterType names the type of sample for use in target= tag options.
// Cached descriptors are dropped so later lookups see the new name.
func (m *Mapper) RegisterType(name string, sample any) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseConvert, "type name cannot be empty")
	}
	t := reflect.TypeOf(sample)
	if t == nil {
		return errors.NilPointer(errors.PhaseConvert, nil, "nil")
	}
	t = indirect(t)

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.named[name]; ok && prev != t {
		return errors.New(errors.PhaseConvert, errors.KindRegistration).
			GoType(t.String()).
			Detail("type name %q already bound to %s", name, prev).
			Build()
	}
	m.named[name] = t
	m.cache.Clear()
	return nil
}

func (m *Mapper) namedType(name string) (reflect.Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.named[name]
	return t, ok
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
