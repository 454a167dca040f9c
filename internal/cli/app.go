package cli

import (
	"context"
	"fmt"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/store"
	"docrag/internal/logger"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	store    *store.BoltStore
	index    *store.BoltVectorStore
	embedder port.Embedder
	ingest   *usecase.IngestUseCase
	pipeline *usecase.Pipeline
}

// openApp opens the index under dir and wires the ingestion path. The answer
// pipeline is only built when withChat is set, so commands that never call
// the chat model do not need its credentials.
func openApp(ctx context.Context, cfg *config.Config, dir string, withChat bool) (*app, error) {
	log := logger.FromContext(ctx)

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	reason, err := st.PrepareIndex(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	if reason != "" {
		log.Warn("Index cleared, re-ingest your documents", "reason", reason)
	}

	emb, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKeyEnv: cfg.Embedding.APIKeyEnv,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Ingest.BatchSize,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	index, err := store.NewBoltVectorStore(st.DB(), emb.Dimension())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	chk, err := chunker.NewWindowChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		store:    st,
		index:    index,
		embedder: emb,
		ingest: usecase.NewIngestUseCase(extract.New(), chk, emb, index, st, usecase.IngestOptions{
			BatchSize: cfg.Ingest.BatchSize,
			Walker:    fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes),
		}),
	}

	if withChat {
		chat, err := llm.NewChatModel(ctx, cfg.LLM)
		if err != nil {
			st.Close()
			return nil, err
		}

		var queryEmbedder port.Embedder = emb
		if cfg.Retrieve.CacheSize > 0 {
			queryEmbedder = cache.NewCachedEmbedder(emb, cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
		}
		a.pipeline = usecase.NewPipeline(queryEmbedder, index, chat, usecase.PipelineOptions{
			TopK:    cfg.Retrieve.TopK,
			Timeout: cfg.LLM.Timeout,
		})
		log.Debug("Answer pipeline ready", "chat_model", chat.ModelName(), "embedder", emb.ModelName())
	}

	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
