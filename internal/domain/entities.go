package domain

import "time"

// Metadata keys stored alongside every indexed chunk.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
)

// Chunk is a trimmed window of a source document's normalized text.
type Chunk struct {
	ID     string
	Text   string
	Source string
	Index  int
}

type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// RetrievedChunk is one nearest-neighbor hit returned by a vector index.
type RetrievedChunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// RetrievalResult holds at most top-k hits ordered nearest first.
type RetrievalResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
}

func (r RetrievalResult) Len() int {
	return len(r.Chunks)
}

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role
	Content string
}

// Document is the registry record of an ingested source.
type Document struct {
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash"`
	Chunks      int       `json:"chunks"`
	IngestedAt  time.Time `json:"ingested_at"`
}
