package usecase

import (
	"strconv"
	"strings"

	"docrag/internal/domain"
)

const unknownSource = "unknown"

// BuildContext renders retrieved chunks as provenance-tagged blocks,
// nearest first, separated by a blank line. An empty result yields "".
func BuildContext(result domain.RetrievalResult) string {
	if len(result.Chunks) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(result.Chunks))
	for i, c := range result.Chunks {
		source, ok := c.Metadata[domain.MetaSource]
		if !ok {
			source = unknownSource
		}
		label, ok := c.Metadata[domain.MetaChunk]
		if !ok {
			label = strconv.Itoa(i + 1)
		}

		var b strings.Builder
		b.WriteString("---\nSource: ")
		b.WriteString(source)
		b.WriteString(" | Chunk: ")
		b.WriteString(label)
		b.WriteString("\n---\n")
		b.WriteString(c.Text)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
