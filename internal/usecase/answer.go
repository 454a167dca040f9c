package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/port"
)

const (
	DefaultTopK    = 3
	DefaultTimeout = 60 * time.Second
)

// PipelineOptions tunes the answer pipeline. Zero values select defaults.
type PipelineOptions struct {
	TopK    int
	Timeout time.Duration
}

// Pipeline answers questions from indexed chunks: embed, retrieve,
// assemble context, prompt the chat model, enforce the fallback.
type Pipeline struct {
	embedder port.Embedder
	index    port.VectorIndex
	chat     port.ChatModel
	topK     int
	timeout  time.Duration
}

func NewPipeline(embedder port.Embedder, index port.VectorIndex, chat port.ChatModel, opts PipelineOptions) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		chat:     chat,
		topK:     opts.TopK,
		timeout:  opts.Timeout,
	}
}

// Retrieve embeds the question and returns its nearest chunks. topK <= 0
// uses the pipeline default.
func (p *Pipeline) Retrieve(ctx context.Context, question string, topK int) (domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = p.topK
	}

	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return domain.RetrievalResult{}, fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrEmbedding, len(vectors))
	}

	result, err := p.index.Query(ctx, vectors[0], topK)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	return result, nil
}

// AnswerQuestion never fails: every upstream error, and any blank model
// output, becomes Fallback. Errors are only logged.
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string, topK int) string {
	log := logger.FromContext(ctx)

	answer, err := p.answer(ctx, question, topK)
	if err != nil {
		log.Error("Answer pipeline failed, returning fallback",
			"question_len", len(question), "error", err)
		return Fallback
	}
	if answer == "" {
		log.Debug("Model returned an empty answer, returning fallback", "question_len", len(question))
		return Fallback
	}
	return answer
}

func (p *Pipeline) answer(ctx context.Context, question string, topK int) (string, error) {
	result, err := p.Retrieve(ctx, question, topK)
	if err != nil {
		return "", err
	}

	logger.FromContext(ctx).Debug("Retrieved context", "chunks", result.Len())
	messages := BuildMessages(BuildContext(result), question)

	chatCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.chat.Complete(chatCtx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return strings.TrimSpace(raw), nil
}
