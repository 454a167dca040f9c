package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/port"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int    { return 2 }
func (e *fakeEmbedder) ModelName() string { return "fake" }

type fakeIndex struct {
	result domain.RetrievalResult
	err    error
	topK   int
}

func (i *fakeIndex) Upsert(context.Context, []port.VectorItem) error { return nil }

func (i *fakeIndex) Query(_ context.Context, _ []float32, topK int) (domain.RetrievalResult, error) {
	i.topK = topK
	return i.result, i.err
}

func (i *fakeIndex) DeleteBySource(context.Context, string) (int, error) { return 0, nil }
func (i *fakeIndex) Count(context.Context) (int, error)                  { return len(i.result.Chunks), nil }

type fakeChat struct {
	mu       sync.Mutex
	reply    func(messages []domain.Message) (string, error)
	messages []domain.Message
	delay    time.Duration
}

func (c *fakeChat) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	c.mu.Lock()
	c.messages = messages
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.reply(messages)
}

func (c *fakeChat) ModelName() string { return "fake-chat" }

func replyWith(s string) func([]domain.Message) (string, error) {
	return func([]domain.Message) (string, error) { return s, nil }
}

// obedientReply answers from context when there is any, otherwise emits the fallback.
func obedientReply(messages []domain.Message) (string, error) {
	if strings.HasPrefix(messages[1].Content, "Context:\n\n\nQuestion:") {
		return Fallback, nil
	}
	return "From context.", nil
}

func sampleResult() domain.RetrievalResult {
	return domain.RetrievalResult{Chunks: []domain.RetrievedChunk{
		{ID: "c1", Text: "Employees get 25 vacation days.", Metadata: map[string]string{"source": "hr.txt", "chunk": "0"}},
	}}
}

func TestPipeline_AnswerQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return fallback for empty retrieval", func(t *testing.T) {
		chat := &fakeChat{reply: obedientReply}
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{}, chat, PipelineOptions{})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "Who owns the company?", 0))
		require.Len(t, chat.messages, 2)
		assert.Equal(t, "Context:\n\n\nQuestion: Who owns the company?\n\nAnswer:", chat.messages[1].Content)
	})

	t.Run("Should pass a fallback reply through unchanged", func(t *testing.T) {
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, &fakeChat{reply: replyWith(Fallback)}, PipelineOptions{})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "q", 0))
	})

	t.Run("Should return trimmed model answer", func(t *testing.T) {
		chat := &fakeChat{reply: replyWith("\n  25 days.  \n")}
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, chat, PipelineOptions{})

		assert.Equal(t, "25 days.", p.AnswerQuestion(ctx, "How many vacation days?", 0))
		assert.Equal(t, SystemPrompt, chat.messages[0].Content)
		assert.Contains(t, chat.messages[1].Content, "---\nSource: hr.txt | Chunk: 0\n---\nEmployees get 25 vacation days.")
	})

	t.Run("Should return fallback for whitespace-only answer", func(t *testing.T) {
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, &fakeChat{reply: replyWith(" \n\t ")}, PipelineOptions{})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "q", 0))
	})

	t.Run("Should return fallback when the model fails", func(t *testing.T) {
		chat := &fakeChat{reply: func([]domain.Message) (string, error) { return "", errors.New("provider down") }}
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, chat, PipelineOptions{})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "q", 0))
	})

	t.Run("Should return fallback when embedding fails", func(t *testing.T) {
		chat := &fakeChat{reply: replyWith("unreachable")}
		p := NewPipeline(&fakeEmbedder{err: errors.New("quota")}, &fakeIndex{result: sampleResult()}, chat, PipelineOptions{})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "q", 0))
		assert.Nil(t, chat.messages)
	})

	t.Run("Should return fallback when retrieval fails", func(t *testing.T) {
		chat := &fakeChat{reply: replyWith("unreachable")}
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{err: errors.New("corrupt")}, chat, PipelineOptions{})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "q", 0))
		assert.Nil(t, chat.messages)
	})

	t.Run("Should return fallback when the model times out", func(t *testing.T) {
		chat := &fakeChat{reply: replyWith("too late"), delay: time.Second}
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, chat, PipelineOptions{Timeout: 20 * time.Millisecond})

		assert.Equal(t, Fallback, p.AnswerQuestion(ctx, "q", 0))
	})

	t.Run("Should answer from context when the model obeys", func(t *testing.T) {
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, &fakeChat{reply: obedientReply}, PipelineOptions{})

		assert.Equal(t, "From context.", p.AnswerQuestion(ctx, "q", 0))
	})
}

func TestPipeline_TopK(t *testing.T) {
	ctx := context.Background()

	t.Run("Should default to three", func(t *testing.T) {
		index := &fakeIndex{}
		p := NewPipeline(&fakeEmbedder{}, index, &fakeChat{reply: obedientReply}, PipelineOptions{})

		p.AnswerQuestion(ctx, "q", 0)

		assert.Equal(t, 3, index.topK)
	})

	t.Run("Should honor explicit and configured values", func(t *testing.T) {
		index := &fakeIndex{}
		p := NewPipeline(&fakeEmbedder{}, index, &fakeChat{reply: obedientReply}, PipelineOptions{TopK: 5})

		p.AnswerQuestion(ctx, "q", 0)
		assert.Equal(t, 5, index.topK)

		p.AnswerQuestion(ctx, "q", 8)
		assert.Equal(t, 8, index.topK)
	})
}

func TestPipeline_Retrieve(t *testing.T) {
	t.Run("Should classify embedding and retrieval errors", func(t *testing.T) {
		p := NewPipeline(&fakeEmbedder{err: errors.New("x")}, &fakeIndex{}, &fakeChat{}, PipelineOptions{})
		_, err := p.Retrieve(context.Background(), "q", 0)
		assert.ErrorIs(t, err, domain.ErrEmbedding)

		p = NewPipeline(&fakeEmbedder{}, &fakeIndex{err: errors.New("y")}, &fakeChat{}, PipelineOptions{})
		_, err = p.Retrieve(context.Background(), "q", 0)
		assert.ErrorIs(t, err, domain.ErrRetrieval)
	})

	t.Run("Should return the index result", func(t *testing.T) {
		p := NewPipeline(&fakeEmbedder{}, &fakeIndex{result: sampleResult()}, &fakeChat{}, PipelineOptions{})

		res, err := p.Retrieve(context.Background(), "q", 1)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Len())
	})
}
