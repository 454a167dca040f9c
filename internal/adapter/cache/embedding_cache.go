package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docrag/internal/port"
)

const (
	defaultMaxSize = 100
	defaultTTL     = 5 * time.Minute
)

// CachedEmbedder memoizes embeddings per text so repeated questions skip
// the provider round trip.
type CachedEmbedder struct {
	embedder port.Embedder
	entries  *expirable.LRU[string, []float32]
}

func NewCachedEmbedder(embedder port.Embedder, maxSize int, ttl time.Duration) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedEmbedder{
		embedder: embedder,
		entries:  expirable.NewLRU[string, []float32](maxSize, nil, ttl),
	}
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string

	for i, text := range texts {
		if v, ok := c.entries.Get(cacheKey(text)); ok {
			results[i] = clone(v)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return results, nil
	}

	vectors, err := c.embedder.Embed(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(order) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(order))
	}
	for i, text := range order {
		c.entries.Add(cacheKey(text), clone(vectors[i]))
		for _, idx := range missing[text] {
			results[idx] = clone(vectors[i])
		}
	}
	return results, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.embedder.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.embedder.ModelName()
}

// Invalidate drops every cached vector.
func (c *CachedEmbedder) Invalidate() {
	c.entries.Purge()
}

func (c *CachedEmbedder) Size() int {
	return c.entries.Len()
}

func clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
