package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"docrag/config"
	"docrag/internal/domain"
	"docrag/internal/port"
)

func openStore(t *testing.T, path string) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s
}

func vectorItem(id, source string, chunk string, v ...float32) port.VectorItem {
	return port.VectorItem{
		ID:       id,
		Vector:   v,
		Metadata: map[string]string{domain.MetaSource: source, domain.MetaChunk: chunk},
		Document: "doc " + id,
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); d > 1e-9 {
		t.Errorf("identical vectors: expected 0, got %f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{0, 1}); d != 1 {
		t.Errorf("orthogonal vectors: expected 1, got %f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{-1, 0}); d != 2 {
		t.Errorf("opposite vectors: expected 2, got %f", d)
	}
	if d := CosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Errorf("zero vector: expected 1, got %f", d)
	}
	if d := CosineDistance([]float32{1}, []float32{1, 0}); d != 1 {
		t.Errorf("mismatched lengths: expected 1, got %f", d)
	}
}

func TestRankNearest_TiesByID(t *testing.T) {
	entries := []Entry{
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{0, 1}},
	}

	res := RankNearest([]float32{1, 0}, entries, 5)
	if res.Len() != 3 {
		t.Fatalf("expected 3 hits, got %d", res.Len())
	}
	if res.Chunks[0].ID != "a" || res.Chunks[1].ID != "b" || res.Chunks[2].ID != "c" {
		t.Errorf("unexpected order: %v", res.Chunks)
	}

	if got := RankNearest([]float32{1, 0}, entries, 0); got.Len() != 0 {
		t.Errorf("k=0 should return nothing, got %d", got.Len())
	}
}

func TestBoltVectorStore_UpsertQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()

	vs, err := NewBoltVectorStore(s.DB(), 0)
	if err != nil {
		t.Fatal(err)
	}

	err = vs.Upsert(ctx, []port.VectorItem{
		vectorItem("x", "a.txt", "0", 1, 0, 0),
		vectorItem("y", "a.txt", "1", 0, 1, 0),
		vectorItem("z", "b.txt", "0", 0.9, 0.1, 0),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if vs.Dimension() != 3 {
		t.Errorf("expected adopted dimension 3, got %d", vs.Dimension())
	}

	res, err := vs.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Len() != 2 {
		t.Fatalf("expected 2 hits, got %d", res.Len())
	}
	if res.Chunks[0].ID != "x" || res.Chunks[1].ID != "z" {
		t.Errorf("unexpected order: %s, %s", res.Chunks[0].ID, res.Chunks[1].ID)
	}
	if res.Chunks[1].Metadata[domain.MetaSource] != "b.txt" {
		t.Errorf("metadata not returned: %v", res.Chunks[1].Metadata)
	}
	if res.Chunks[0].Distance > res.Chunks[1].Distance {
		t.Error("distances not ascending")
	}
}

func TestBoltVectorStore_ReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()

	vs, _ := NewBoltVectorStore(s.DB(), 2)
	_ = vs.Upsert(ctx, []port.VectorItem{vectorItem("x", "a.txt", "0", 1, 0)})

	replaced := vectorItem("x", "a.txt", "0", 0, 1)
	replaced.Document = "new text"
	if err := vs.Upsert(ctx, []port.VectorItem{replaced}); err != nil {
		t.Fatal(err)
	}

	count, _ := vs.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 vector after replace, got %d", count)
	}
	res, _ := vs.Query(ctx, []float32{0, 1}, 1)
	if res.Chunks[0].Text != "new text" {
		t.Errorf("expected replaced text, got %q", res.Chunks[0].Text)
	}

	n, err := vs.DeleteBySource(ctx, "a.txt")
	if err != nil || n != 1 {
		t.Errorf("expected 1 deleted, got %d (%v)", n, err)
	}
	res, _ = vs.Query(ctx, []float32{0, 1}, 1)
	if res.Len() != 0 {
		t.Errorf("expected empty index, got %d hits", res.Len())
	}
}

func TestBoltVectorStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()

	vs, _ := NewBoltVectorStore(s.DB(), 2)

	err := vs.Upsert(ctx, []port.VectorItem{
		vectorItem("ok", "a.txt", "0", 1, 0),
		vectorItem("bad", "a.txt", "1", 1, 0, 0),
	})
	if err == nil {
		t.Fatal("expected dimension mismatch")
	}
	count, _ := vs.Count(ctx)
	if count != 0 {
		t.Errorf("failed batch must store nothing, got %d", count)
	}

	if err := vs.Upsert(ctx, []port.VectorItem{vectorItem("", "a.txt", "0", 1, 0)}); err == nil {
		t.Error("expected error for empty id")
	}

	_ = vs.Upsert(ctx, []port.VectorItem{vectorItem("ok", "a.txt", "0", 1, 0)})
	if _, err := vs.Query(ctx, []float32{1, 0, 0}, 1); err == nil {
		t.Error("expected query dimension mismatch")
	}
}

func TestBoltVectorStore_CanceledContext(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()
	vs, _ := NewBoltVectorStore(s.DB(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := vs.Query(ctx, []float32{1, 0}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBoltVectorStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s := openStore(t, path)
	vs, _ := NewBoltVectorStore(s.DB(), 0)
	_ = vs.Upsert(ctx, []port.VectorItem{
		vectorItem("x", "a.txt", "0", 1, 0),
		vectorItem("y", "a.txt", "1", 0, 1),
	})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s = openStore(t, path)
	defer s.Close()
	vs, err := NewBoltVectorStore(s.DB(), 0)
	if err != nil {
		t.Fatal(err)
	}

	count, _ := vs.Count(ctx)
	if count != 2 {
		t.Errorf("expected 2 vectors after reopen, got %d", count)
	}
	if vs.Dimension() != 2 {
		t.Errorf("expected dimension 2 after reopen, got %d", vs.Dimension())
	}
	res, _ := vs.Query(ctx, []float32{0, 1}, 1)
	if res.Chunks[0].ID != "y" || res.Chunks[0].Metadata[domain.MetaChunk] != "1" {
		t.Errorf("unexpected hit after reopen: %+v", res.Chunks[0])
	}
}

func TestBoltStore_Registry(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.PutDoc(domain.Document{Source: "b.pdf", ContentHash: "h2", Chunks: 4, IngestedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutDoc(domain.Document{Source: "a.txt", ContentHash: "h1", Chunks: 1, IngestedAt: now}); err != nil {
		t.Fatal(err)
	}

	doc, err := s.GetDoc("b.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ContentHash != "h2" || doc.Chunks != 4 || !doc.IngestedAt.Equal(now) {
		t.Errorf("unexpected doc: %+v", doc)
	}

	docs, err := s.ListDocs()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Source != "a.txt" {
		t.Errorf("expected sorted docs, got %+v", docs)
	}

	_ = s.DeleteDoc("a.txt")
	if _, err := s.GetDoc("a.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrations(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()
	cfg := config.DefaultConfig()

	result, err := s.CheckMigration(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsMigration || result.NeedsRebuild {
		t.Errorf("fresh db should need migration only: %+v", result)
	}

	if err := s.PutDoc(domain.Document{Source: "kept.txt", ContentHash: "h", Chunks: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(cfg); err != nil {
		t.Fatal(err)
	}
	info, err := s.GetSchemaInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != CurrentSchemaVersion || info.ConfigHash != ComputeConfigHash(cfg) {
		t.Errorf("unexpected schema info after migrate: %+v", info)
	}
	if _, err := s.GetDoc("kept.txt"); err != nil {
		t.Errorf("migrate should keep existing docs: %v", err)
	}
	result, _ = s.CheckMigration(cfg)
	if result.NeedsMigration || result.NeedsRebuild {
		t.Errorf("migrated db should be current: %+v", result)
	}

	changed := config.DefaultConfig()
	changed.Chunk.Size = 500
	result, _ = s.CheckMigration(changed)
	if !result.NeedsRebuild {
		t.Error("changed chunk size should require rebuild")
	}

	llmOnly := config.DefaultConfig()
	llmOnly.LLM.Model = "other"
	result, _ = s.CheckMigration(llmOnly)
	if result.NeedsRebuild {
		t.Error("chat model change should not require rebuild")
	}
}

func TestPrepareIndex_ClearsOnConfigChange(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()
	cfg := config.DefaultConfig()

	if _, err := s.PrepareIndex(cfg); err != nil {
		t.Fatal(err)
	}
	vs, _ := NewBoltVectorStore(s.DB(), 2)
	_ = vs.Upsert(context.Background(), []port.VectorItem{vectorItem("x", "a.txt", "0", 1, 0)})
	_ = s.PutDoc(domain.Document{Source: "a.txt"})

	cfg.Embedding.Model = "another-model"
	reason, err := s.PrepareIndex(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if reason == "" {
		t.Error("expected a rebuild reason")
	}

	reopened, _ := NewBoltVectorStore(s.DB(), 0)
	count, _ := reopened.Count(context.Background())
	if count != 0 {
		t.Errorf("expected vectors cleared, got %d", count)
	}
	docs, _ := s.ListDocs()
	if len(docs) != 0 {
		t.Errorf("expected registry cleared, got %d", len(docs))
	}

	reason, _ = s.PrepareIndex(cfg)
	if reason != "" {
		t.Errorf("second prepare should be a no-op, got %q", reason)
	}
}
