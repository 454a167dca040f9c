package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Config selects and parameterizes an embedding backend.
type Config struct {
	Provider  string
	Model     string
	APIKeyEnv string
	BaseURL   string
	Dimension int
	BatchSize int
}

// LangChainEmbedder adapts a langchaingo embedder to port.Embedder.
type LangChainEmbedder struct {
	model     string
	dimension int
	impl      embeddings.Embedder
}

// New builds the embedder named by cfg.Provider.
func New(cfg Config) (*LangChainEmbedder, error) {
	if strings.TrimSpace(cfg.Model) == "" && cfg.Provider != ProviderMock {
		return nil, errors.New("embedding model is required")
	}

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		client, err = newOpenAIClient(cfg)
	case ProviderOllama:
		client, err = newOllamaClient(cfg)
	case ProviderMock:
		if cfg.Dimension <= 0 {
			cfg.Dimension = defaultMockDimension
		}
		return Wrap(cfg, NewMockEmbedder(cfg.Dimension))
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	impl, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s embedder: %w", cfg.Provider, err)
	}
	return Wrap(cfg, impl)
}

// Wrap adapts an existing langchaingo embedder.
func Wrap(cfg Config, impl embeddings.Embedder) (*LangChainEmbedder, error) {
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("embedding dimension must be greater than zero")
	}
	model := cfg.Model
	if cfg.Provider == ProviderMock {
		model = "mock"
	}
	return &LangChainEmbedder{
		model:     model,
		dimension: cfg.Dimension,
		impl:      impl,
	}, nil
}

func (e *LangChainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", e.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder %s: received %d embeddings for %d texts", e.model, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedder %s: vector %d has dimension %d, expected %d", e.model, i, len(v), e.dimension)
		}
	}
	return vectors, nil
}

func (e *LangChainEmbedder) Dimension() int {
	return e.dimension
}

func (e *LangChainEmbedder) ModelName() string {
	return e.model
}

func newOpenAIClient(cfg Config) (*openai.LLM, error) {
	apiKeyEnv := cfg.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	return client, nil
}

func newOllamaClient(cfg Config) (*ollama.LLM, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return client, nil
}
