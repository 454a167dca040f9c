package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// MemoryStore is a non-persistent VectorIndex and DocumentRegistry.
// Useful for tests and one-shot runs.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string]domain.Document
	vectors   map[string]store.Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]domain.Document),
		vectors: make(map[string]store.Entry),
	}
}

func (s *MemoryStore) PutDoc(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Source] = doc
	return nil
}

func (s *MemoryStore) GetDoc(source string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[source]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", source, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) DeleteDoc(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, source)
	return nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

func (s *MemoryStore) Upsert(_ context.Context, items []port.VectorItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dimension := s.dimension
	if dimension == 0 {
		dimension = len(items[0].Vector)
	}
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("vector item has empty id")
		}
		if len(item.Vector) != dimension || dimension == 0 {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", dimension, len(item.Vector))
		}
	}

	s.dimension = dimension
	for _, item := range items {
		meta := make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			meta[k] = v
		}
		s.vectors[item.ID] = store.Entry{
			ID:       item.ID,
			Vector:   append([]float32(nil), item.Vector...),
			Metadata: meta,
			Document: item.Document,
		}
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int) (domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RetrievalResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(vector) != s.dimension {
		return domain.RetrievalResult{}, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	entries := make([]store.Entry, 0, len(s.vectors))
	for _, e := range s.vectors {
		entries = append(entries, e)
	}
	return store.RankNearest(vector, entries, topK), nil
}

func (s *MemoryStore) DeleteBySource(_ context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.vectors {
		if e.Metadata[domain.MetaSource] == source {
			delete(s.vectors, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}
