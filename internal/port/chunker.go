package port

import "docrag/internal/domain"

type Chunker interface {
	Chunk(source, text string) []domain.Chunk
}
