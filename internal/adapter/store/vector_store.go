package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var (
	bucketVectors = []byte("vectors")
)

// BoltVectorStore implements port.VectorIndex using BoltDB for persistence.
// Uses brute-force search over an in-memory mirror of the bucket.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	vectors   map[string]Entry
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
	Document string            `json:"d"`
}

// NewBoltVectorStore creates a new BoltDB-backed vector store. A zero
// dimension is adopted from the stored vectors or the first upsert.
func NewBoltVectorStore(db *bbolt.DB, dimension int) (*BoltVectorStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	store := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string]Entry),
	}

	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			if s.dimension == 0 {
				s.dimension = len(stored.Vector)
			}
			s.vectors[string(k)] = Entry{
				ID:       string(k),
				Vector:   stored.Vector,
				Metadata: stored.Metadata,
				Document: stored.Document,
			}
			return nil
		})
	})
}

// Upsert adds or replaces vectors. Either every item is stored or none is.
func (s *BoltVectorStore) Upsert(_ context.Context, items []port.VectorItem) error {
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

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, item := range items {
			data, err := json.Marshal(storedVector{
				Vector:   item.Vector,
				Metadata: item.Metadata,
				Document: item.Document,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dimension = dimension
	for _, item := range items {
		s.vectors[item.ID] = Entry{
			ID:       item.ID,
			Vector:   item.Vector,
			Metadata: cloneMetadata(item.Metadata),
			Document: item.Document,
		}
	}
	return nil
}

// Query finds the topK nearest vectors by cosine distance.
func (s *BoltVectorStore) Query(ctx context.Context, vector []float32, topK int) (domain.RetrievalResult, error) {
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

	entries := make([]Entry, 0, len(s.vectors))
	for _, e := range s.vectors {
		entries = append(entries, e)
	}
	return RankNearest(vector, entries, topK), nil
}

// DeleteBySource removes every vector whose source metadata equals source.
func (s *BoltVectorStore) DeleteBySource(_ context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, e := range s.vectors {
		if e.Metadata[domain.MetaSource] == source {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		delete(s.vectors, id)
	}
	return len(ids), nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *BoltVectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}
