// Package memstore is an in-memory document store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/store"
)

// Store keeps collections in process. It is safe for concurrent use.
type Store struct {
	collections map[string]*Collection
	mu          sync.RWMutex
	closed      bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection returns the collection called name, creating it on first use.
func (s *Store) Collection(name string) store.Collection {
	return s.collection(name)
}

func (s *Store) collection(name string) *Collection {
	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c
	}
	c = &Collection{
		store:    s,
		name:     name,
		entries:  make([]entry, 0, 16),
		index:    make(map[string]int),
		freeList: make([]int, 0, 4),
	}
	s.collections[name] = c
	return c
}

// Names lists the collections created so far in lexical order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close drops every document. Later operations fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, c := range s.collections {
		c.mu.Lock()
		c.entries = nil
		c.index = nil
		c.freeList = nil
		c.mu.Unlock()
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Collection is one named set of documents. Slots of deleted documents are
// reused by later inserts.
type Collection struct {
	store    *Store
	name     string
	entries  []entry
	index    map[string]int
	freeList []int
	mu       sync.RWMutex
}

var _ store.Collection = (*Collection)(nil)

type entry struct {
	id    string
	doc   *docmap.Document
	valid bool
}

func (c *Collection) Name() string { return c.name }

// check validates the call before the collection lock is taken.
func (c *Collection) check(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.store.isClosed() {
		return store.Closed("memstore")
	}
	return store.CheckID(id)
}

// closed reports a Close that raced the call. Callers hold c.mu.
func (c *Collection) closed() error {
	if c.index == nil {
		return store.Closed("memstore")
	}
	return nil
}

// Find returns a copy of the document stored under id.
func (c *Collection) Find(ctx context.Context, id string) (*docmap.Document, error) {
	if err := c.check(ctx, id); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.closed(); err != nil {
		return nil, err
	}
	i, ok := c.index[id]
	if !ok {
		return nil, store.NotFound(c.name, id)
	}
	return c.entries[i].doc.Clone(), nil
}

// Insert stores a copy of doc under a new id.
func (c *Collection) Insert(ctx context.Context, id string, doc *docmap.Document) error {
	if err := c.check(ctx, id); err != nil {
		return err
	}
	if err := store.CheckDocument(doc); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.closed(); err != nil {
		return err
	}
	if _, ok := c.index[id]; ok {
		return store.Exists(c.name, id)
	}
	c.put(id, doc.Clone())
	return nil
}

// Replace overwrites the document under id, creating it when upsert is set.
func (c *Collection) Replace(ctx context.Context, id string, doc *docmap.Document, upsert bool) (bool, error) {
	if err := c.check(ctx, id); err != nil {
		return false, err
	}
	if err := store.CheckDocument(doc); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.closed(); err != nil {
		return false, err
	}
	if i, ok := c.index[id]; ok {
		c.entries[i].doc = doc.Clone()
		return false, nil
	}
	if !upsert {
		return false, store.NotFound(c.name, id)
	}
	c.put(id, doc.Clone())
	return true, nil
}

func (c *Collection) put(id string, doc *docmap.Document) {
	e := entry{id: id, doc: doc, valid: true}

	if len(c.freeList) > 0 {
		slot := c.freeList[len(c.freeList)-1]
		c.freeList = c.freeList[:len(c.freeList)-1]
		c.entries[slot] = e
		c.index[id] = slot
		return
	}

	c.entries = append(c.entries, e)
	c.index[id] = len(c.entries) - 1
}

// Delete removes the document under id.
func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.check(ctx, id); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.closed(); err != nil {
		return false, err
	}
	i, ok := c.index[id]
	if !ok {
		return false, nil
	}
	c.entries[i] = entry{}
	delete(c.index, id)
	c.freeList = append(c.freeList, i)
	return true, nil
}

// IDs lists the stored identifiers in lexical order.
func (c *Collection) IDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.store.isClosed() {
		return nil, store.Closed("memstore")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.closed(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(c.index))
	for _, e := range c.entries {
		if e.valid {
			ids = append(ids, e.id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}
