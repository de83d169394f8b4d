// Package memory is an in-process document store. It evaluates filter
// trees with the same matcher the query layer uses for computed
// predicates, which makes it the reference backend in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/flexschema/internal/backend"
	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
)

// Store holds collections of documents keyed by identifier.
//
// Documents are normalized and deep-copied on the way in and out, so
// callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	closed      bool
}

var _ backend.Backend = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]map[string]any)}
}

// Name implements backend.Backend.
func (s *Store) Name() string { return "memory" }

// Find implements backend.Backend.
func (s *Store) Find(ctx context.Context, collection string, n filter.Node, opts backend.FindOptions) ([]map[string]any, error) {
	matched, err := s.match(ctx, collection, n)
	if err != nil {
		return nil, err
	}
	backend.SortDocuments(matched, opts.Sort)
	matched = backend.Window(matched, opts.Skip, opts.Limit)

	out := make([]map[string]any, len(matched))
	for i, d := range matched {
		out[i] = doc.Clone(d).(map[string]any)
	}
	return out, nil
}

// Count implements backend.Backend.
func (s *Store) Count(ctx context.Context, collection string, n filter.Node) (int, error) {
	matched, err := s.match(ctx, collection, n)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) match(ctx context.Context, collection string, n filter.Node) ([]map[string]any, error) {
	if err := s.check(ctx, collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []map[string]any
	for _, d := range s.collections[collection] {
		if filter.Matches(n, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Replace implements backend.Backend.
func (s *Store) Replace(ctx context.Context, collection, id string, document map[string]any) (bool, error) {
	if err := s.check(ctx, collection); err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}
	stored, ok := doc.Normalize(document).(map[string]any)
	if !ok {
		return false, fmt.Errorf("memory: document for %q is not an object", id)
	}
	stored[backend.IDField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	docs[id] = stored
	return true, nil
}

// Delete implements backend.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := s.check(ctx, collection); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	if _, ok := docs[id]; !ok {
		return false, nil
	}
	delete(docs, id)
	return true, nil
}

// Drop implements backend.Backend.
func (s *Store) Drop(ctx context.Context, collection string) error {
	if err := s.check(ctx, collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// Close implements backend.Backend. Documents are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.collections = nil
	return nil
}

func (s *Store) check(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return backend.ErrClosed
	}
	return backend.ValidateCollection(collection)
}
