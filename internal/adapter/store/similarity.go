package store

import (
	"math"
	"sort"

	"docrag/internal/domain"
)

// Entry is an indexed vector with its chunk text and metadata.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
	Document string
}

// CosineDistance returns 1 - cosine similarity. Zero or mismatched vectors
// are treated as orthogonal.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
}

// RankNearest scores every entry against query and returns the k nearest,
// ascending by distance with ID as the tie breaker.
func RankNearest(query []float32, entries []Entry, k int) domain.RetrievalResult {
	if k <= 0 || len(entries) == 0 {
		return domain.RetrievalResult{}
	}

	hits := make([]domain.RetrievedChunk, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, domain.RetrievedChunk{
			ID:       e.ID,
			Text:     e.Document,
			Metadata: cloneMetadata(e.Metadata),
			Distance: CosineDistance(query, e.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return domain.RetrievalResult{Chunks: hits[:k]}
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
