package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"docrag/internal/domain"
)

const (
	// Character counts; roughly 300-500 tokens per chunk.
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

var (
	errInvalidSize    = errors.New("chunk size must be greater than zero")
	errInvalidOverlap = errors.New("chunk overlap cannot be negative")
)

// WindowChunker splits text into overlapping fixed-size character windows.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, errInvalidSize
	}
	if overlap < 0 {
		return nil, errInvalidOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Size() int    { return c.size }
func (c *WindowChunker) Overlap() int { return c.overlap }

// Split returns the trimmed, non-empty windows of text.
func (c *WindowChunker) Split(text string) []string {
	return SplitText(text, c.size, c.overlap)
}

// Chunk splits text and wraps each window into a Chunk owned by source.
func (c *WindowChunker) Chunk(source, text string) []domain.Chunk {
	windows := c.Split(text)
	if len(windows) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, domain.Chunk{
			ID:     generateChunkID(source, i),
			Text:   w,
			Source: source,
			Index:  i,
		})
	}
	return chunks
}

// SplitText cuts text into windows of size characters, each starting
// size-overlap characters after the previous one. Carriage returns are
// removed before measuring. Windows that trim to nothing are dropped.
// Returns nil when size and overlap do not describe a forward-moving window.
func SplitText(text string, size, overlap int) []string {
	if text == "" || size <= 0 || overlap < 0 || overlap >= size {
		return nil
	}

	runes := []rune(strings.ReplaceAll(text, "\r", ""))
	length := len(runes)

	var chunks []string
	for start := 0; start < length; {
		end := start + size
		window := runes[start:min(end, length)]

		if trimmed := strings.TrimSpace(string(window)); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		if end >= length {
			break
		}
		start = end - overlap
	}

	return chunks
}

func generateChunkID(source string, index int) string {
	data := fmt.Sprintf("%s:%d", source, index)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
