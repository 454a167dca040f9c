package usecase

import "docrag/internal/domain"

// Fallback is returned whenever no grounded answer is available. Models are
// instructed to emit it verbatim, so it must never change.
const Fallback = "I could not find that information in the documents."

const SystemPrompt = "You are an AI assistant answering questions about workplace documents.\n" +
	"You must use ONLY the provided context to answer.\n" +
	"If the answer is not present in the context, you MUST respond with exactly:\n" +
	"\"" + Fallback + "\"\n" +
	"Do not use prior knowledge. Do not guess. Do not invent facts."

// BuildMessages returns the system instruction followed by the user turn
// carrying the context block and the question.
func BuildMessages(contextBlock, question string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: SystemPrompt},
		{Role: domain.RoleUser, Content: "Context:\n" + contextBlock + "\n\nQuestion: " + question + "\n\nAnswer:"},
	}
}
