package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

func main() {
	dataDir := flag.String("dir", ".", "Directory holding .docrag/")
	query := flag.String("q", "", "Question to probe retrieval with")
	topK := flag.Int("k", 5, "Number of results")
	runs := flag.Int("runs", 20, "Timed query repetitions")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -q \"question\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index size and embedding model")
		fmt.Println("  2. Nearest passages with cosine distance")
		fmt.Println("  3. Query embedding and search latency")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	dbPath := config.IndexDBPath(*dataDir)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "No index at %s - run 'docrag ingest' first\n", dbPath)
		os.Exit(1)
	}
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	emb, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKeyEnv: cfg.Embedding.APIKeyEnv,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	index, err := store.NewBoltVectorStore(st.DB(), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Vector store failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	count, _ := index.Count(ctx)
	if count == 0 {
		fmt.Fprintln(os.Stderr, "Index is empty - run 'docrag ingest' first")
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", count)
	fmt.Printf("Model: %s (%s)\n", emb.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n\n", index.Dimension())

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	embedStart := time.Now()
	vectors, err := emb.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	embedLatency := time.Since(embedStart)

	result, err := index.Query(ctx, vectors[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Top %d passages:\n\n", result.Len())
	for i, hit := range result.Chunks {
		fmt.Printf("%d. [%s %.3f] %s #%s\n", i+1, rate(hit.Distance), hit.Distance,
			hit.Metadata[domain.MetaSource], hit.Metadata[domain.MetaChunk])
		fmt.Printf("   %s\n\n", preview(hit.Text))
	}

	var searchTotal time.Duration
	for i := 0; i < *runs; i++ {
		start := time.Now()
		if _, err := index.Query(ctx, vectors[0], *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		searchTotal += time.Since(start)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("LATENCY:")
	fmt.Printf("  Query embedding: %s\n", embedLatency.Round(time.Microsecond))
	if *runs > 0 {
		fmt.Printf("  Search (avg of %d): %s\n", *runs, (searchTotal / time.Duration(*runs)).Round(time.Microsecond))
	}
	if result.Len() > 0 {
		fmt.Printf("  Top-1 distance: %.3f\n", result.Chunks[0].Distance)
	}
}

// rate buckets a cosine distance; lower is closer.
func rate(distance float64) string {
	switch {
	case distance < 0.3:
		return "HIGH"
	case distance < 0.5:
		return "GOOD"
	case distance < 0.7:
		return "OK"
	default:
		return "LOW"
	}
}

func preview(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if r := []rune(text); len(r) > 150 {
		return string(r[:150]) + "..."
	}
	return text
}
