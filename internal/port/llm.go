package port

import (
	"context"

	"docrag/internal/domain"
)

// ChatModel turns an ordered message list into a single completion.
type ChatModel interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
