package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

const DefaultBatchSize = 100

// IngestOptions tunes ingestion. Zero values select defaults.
type IngestOptions struct {
	BatchSize int             // chunks per embedding call
	Force     bool            // re-ingest even when content is unchanged
	Walker    port.FileWalker // used by IngestDir, defaults to fs.NewWalker(nil, nil)
}

// IngestUseCase turns uploaded files into indexed chunks.
type IngestUseCase struct {
	extractor port.Extractor
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.VectorIndex
	registry  port.DocumentRegistry
	opts      IngestOptions
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	registry port.DocumentRegistry,
	opts IngestOptions,
) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Walker == nil {
		opts.Walker = fs.NewWalker(nil, nil)
	}
	return &IngestUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		registry:  registry,
		opts:      opts,
	}
}

// IngestResult contains the results of ingesting one file.
type IngestResult struct {
	Source        string
	ChunksStored  int
	ChunksRemoved int
	Skipped       bool
}

// Ingest extracts, chunks, embeds and stores one file under its base name.
// Chunks from a previous ingestion of the same source are replaced.
func (u *IngestUseCase) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	return u.ingestAs(ctx, filepath.Base(filename), filename, data)
}

func (u *IngestUseCase) ingestAs(ctx context.Context, source, filename string, data []byte) (*IngestResult, error) {
	log := logger.FromContext(ctx)
	hash := contentHash(data)

	// Skip unchanged content
	if !u.opts.Force {
		prev, err := u.registry.GetDoc(source)
		switch {
		case err == nil && prev.ContentHash == hash:
			log.Debug("Skipping unchanged document", "source", source)
			return &IngestResult{Source: source, ChunksStored: prev.Chunks, Skipped: true}, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("failed to look up %s: %w", source, err)
		}
	}

	text, err := u.extractor.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", source, err)
	}

	chunks := u.chunker.Chunk(source, text)

	vectors, err := u.embedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", source, err)
	}

	// Drop the registry record first so a failed replace is never skipped later
	if err := u.registry.DeleteDoc(source); err != nil {
		return nil, fmt.Errorf("failed to unregister %s: %w", source, err)
	}

	// Replace whatever an earlier ingestion stored for this source
	removed, err := u.index.DeleteBySource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to remove old chunks for %s: %w", source, err)
	}

	items := make([]port.VectorItem, len(chunks))
	for i, c := range chunks {
		items[i] = port.VectorItem{
			ID:     c.ID,
			Vector: vectors[i],
			Metadata: map[string]string{
				domain.MetaSource: c.Source,
				domain.MetaChunk:  strconv.Itoa(c.Index),
			},
			Document: c.Text,
		}
	}
	if err := u.index.Upsert(ctx, items); err != nil {
		return nil, fmt.Errorf("failed to store chunks for %s: %w", source, err)
	}

	doc := domain.Document{
		Source:      source,
		ContentHash: hash,
		Chunks:      len(chunks),
		IngestedAt:  time.Now().UTC(),
	}
	if err := u.registry.PutDoc(doc); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", source, err)
	}

	log.Info("Ingested document", "source", source, "chunks", len(chunks), "replaced", removed)
	return &IngestResult{
		Source:        source,
		ChunksStored:  len(chunks),
		ChunksRemoved: removed,
	}, nil
}

// embedChunks embeds chunk texts in BatchSize groups, preserving order.
func (u *IngestUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += u.opts.BatchSize {
		end := min(start+u.opts.BatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// DirResult contains the results of ingesting a directory.
type DirResult struct {
	FilesIngested int
	FilesSkipped  int
	ChunksStored  int
	Errors        []string
}

// IngestDir ingests every matching file below root. Sources are named by
// their slash-separated path relative to root, so equal base names in
// different directories stay distinct. Per-file failures are collected
// rather than aborting the run. progress, when set, is called once per
// file after it has been processed.
func (u *IngestUseCase) IngestDir(ctx context.Context, root string, progress func(path string)) (*DirResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	files, err := u.opts.Walker.Walk(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &DirResult{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := u.ingestFile(ctx, sourceName(absRoot, file.Path), file.Path)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, err))
		case res.Skipped:
			result.FilesSkipped++
		default:
			result.FilesIngested++
			result.ChunksStored += res.ChunksStored
		}

		if progress != nil {
			progress(file.Path)
		}
	}
	return result, nil
}

// CountFiles reports how many files IngestDir would visit.
func (u *IngestUseCase) CountFiles(root string) (int, error) {
	files, err := u.opts.Walker.Walk(root)
	if err != nil {
		return 0, fmt.Errorf("failed to walk directory: %w", err)
	}
	return len(files), nil
}

func (u *IngestUseCase) ingestFile(ctx context.Context, source, path string) (*IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return u.ingestAs(ctx, source, path, data)
}

// sourceName is path relative to root with forward slashes. A root that is
// the file itself yields the base name.
func sourceName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SetForce toggles re-ingestion of unchanged content.
func (u *IngestUseCase) SetForce(force bool) {
	u.opts.Force = force
}
