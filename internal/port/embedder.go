package port

import (
	"context"

	"docrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores embedded chunks and answers nearest-neighbor queries.
type VectorIndex interface {
	// Upsert adds vectors, replacing any entries that share an ID.
	Upsert(ctx context.Context, items []VectorItem) error

	// Query returns up to topK entries ordered by ascending distance.
	Query(ctx context.Context, vector []float32, topK int) (domain.RetrievalResult, error)

	// DeleteBySource removes every entry whose source metadata matches.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Count returns the number of vectors in the index.
	Count(ctx context.Context) (int, error)
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID       string            // Chunk ID
	Vector   []float32         // Embedding vector
	Metadata map[string]string // source and chunk index
	Document string            // Chunk text
}
