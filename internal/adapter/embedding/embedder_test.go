package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbeddings struct {
	vectors [][]float32
	err     error
	calls   int
}

func (s *stubEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

func (s *stubEmbeddings) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[0], nil
}

func TestLangChainEmbedder_Embed(t *testing.T) {
	cfg := Config{Provider: ProviderOpenAI, Model: "text-embedding-3-small", Dimension: 2}

	t.Run("Should return one vector per text", func(t *testing.T) {
		stub := &stubEmbeddings{vectors: [][]float32{{1, 0}, {0, 1}}}
		e, err := Wrap(cfg, stub)
		require.NoError(t, err)

		vectors, err := e.Embed(context.Background(), []string{"hello world", "another sentence"})
		require.NoError(t, err)
		assert.Len(t, vectors, 2)
		assert.Len(t, vectors[0], 2)
		assert.Equal(t, "text-embedding-3-small", e.ModelName())
		assert.Equal(t, 2, e.Dimension())
	})

	t.Run("Should skip the backend for empty input", func(t *testing.T) {
		stub := &stubEmbeddings{}
		e, err := Wrap(cfg, stub)
		require.NoError(t, err)

		vectors, err := e.Embed(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Equal(t, 0, stub.calls)
	})

	t.Run("Should reject a count mismatch", func(t *testing.T) {
		e, err := Wrap(cfg, &stubEmbeddings{vectors: [][]float32{{1, 0}}})
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), []string{"a", "b"})
		require.Error(t, err)
	})

	t.Run("Should reject a dimension mismatch", func(t *testing.T) {
		e, err := Wrap(cfg, &stubEmbeddings{vectors: [][]float32{{1, 0, 0}}})
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), []string{"a"})
		require.Error(t, err)
	})

	t.Run("Should wrap backend errors", func(t *testing.T) {
		backendErr := errors.New("rate limit")
		e, err := Wrap(cfg, &stubEmbeddings{err: backendErr})
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), []string{"a"})
		require.ErrorIs(t, err, backendErr)
	})
}

func TestWrap_Validation(t *testing.T) {
	_, err := Wrap(Config{Dimension: 2}, nil)
	require.Error(t, err)

	_, err = Wrap(Config{Dimension: 0}, &stubEmbeddings{})
	require.Error(t, err)
}

func TestNew_Providers(t *testing.T) {
	t.Run("Should build the mock provider without credentials", func(t *testing.T) {
		e, err := New(Config{Provider: ProviderMock})
		require.NoError(t, err)
		assert.Equal(t, "mock", e.ModelName())
		assert.Equal(t, defaultMockDimension, e.Dimension())
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := New(Config{Provider: "voyage", Model: "m", Dimension: 8})
		require.Error(t, err)
	})

	t.Run("Should require an api key for openai", func(t *testing.T) {
		t.Setenv("DOCRAG_TEST_MISSING_KEY", "")
		_, err := New(Config{Provider: ProviderOpenAI, Model: "m", APIKeyEnv: "DOCRAG_TEST_MISSING_KEY", Dimension: 8})
		require.Error(t, err)
	})
}

func TestMockEmbedder(t *testing.T) {
	m := NewMockEmbedder(256)
	ctx := context.Background()

	t.Run("Should be deterministic", func(t *testing.T) {
		a, _ := m.EmbedQuery(ctx, "Go is great for AI.")
		b, _ := m.EmbedQuery(ctx, "Go is great for AI.")
		assert.Equal(t, a, b)
	})

	t.Run("Should place texts with shared words closer", func(t *testing.T) {
		q, _ := m.EmbedQuery(ctx, "vacation days policy")
		near, _ := m.EmbedQuery(ctx, "the vacation policy grants days off")
		far, _ := m.EmbedQuery(ctx, "kubernetes cluster upgrade")
		assert.Greater(t, dot(q, near), dot(q, far))
	})

	t.Run("Should return a zero vector for text without words", func(t *testing.T) {
		v, _ := m.EmbedQuery(ctx, "   ...  ")
		assert.Len(t, v, 256)
		assert.Equal(t, float32(0), dot(v, v))
	})
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
