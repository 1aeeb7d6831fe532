package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store with the same merge and query semantics
// as the Postgres implementation. It backs tests and local development.
type MemoryStore struct {
	collections map[string]map[string]Document
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
	}
}

// Get retrieves a single document
func (s *MemoryStore) Get(ctx context.Context, collection, key string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}

	return copyDocument(doc), nil
}

// Set writes a document, replacing any existing one
func (s *MemoryStore) Set(ctx context.Context, collection, key string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureCollection(collection)[key] = copyDocument(doc)
	return nil
}

// SetMerged merges the given fields into the document, creating it if absent
func (s *MemoryStore) SetMerged(ctx context.Context, collection, key string, partial Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.ensureCollection(collection)
	existing, ok := coll[key]
	if !ok {
		existing = Document{}
	}

	for k, v := range copyDocument(partial) {
		existing[k] = v
	}
	coll[key] = existing

	return nil
}

// Delete removes a document
func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	if _, ok := coll[key]; !ok {
		return ErrNotFound
	}

	delete(coll, key)
	return nil
}

// DeleteField removes a single field from a document
func (s *MemoryStore) DeleteField(ctx context.Context, collection, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return ErrNotFound
	}

	delete(doc, field)
	return nil
}

// Query returns the documents in a collection, optionally filtered by field
// equality with a result cap. Results are ordered by key, matching Postgres.
func (s *MemoryStore) Query(ctx context.Context, collection string, filter *Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]

	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	docs := make([]Document, 0, len(coll))
	for _, k := range keys {
		doc := coll[k]

		if filter != nil && filter.Field != "" && !fieldEquals(doc[filter.Field], filter.Value) {
			continue
		}

		docs = append(docs, copyDocument(doc))

		if filter != nil && filter.Limit > 0 && len(docs) >= filter.Limit {
			break
		}
	}

	return docs, nil
}

// ensureCollection must be called with the write lock held
func (s *MemoryStore) ensureCollection(collection string) map[string]Document {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	return coll
}

// fieldEquals compares a stored value against a filter value through JSON
// normalization, so bool and numeric comparisons behave like JSONB
// containment does.
func fieldEquals(stored, want interface{}) bool {
	a, err := json.Marshal(stored)
	if err != nil {
		return false
	}
	b, err := json.Marshal(want)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
