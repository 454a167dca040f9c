package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	askQuestion    string
	askTopK        int
	askShowContext bool
	askJSON        bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieve the passages nearest to the question and ask the chat model to
answer from them only. When the documents do not contain the answer the reply
is exactly: "I could not find that information in the documents."

Examples:
  docrag ask -q "What is the vacation policy?"
  docrag ask -q "Who approves expenses?" -k 5 --show-context`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the retrieved passages")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

type askOutput struct {
	Answer  string                  `json:"answer"`
	Context []domain.RetrievedChunk `json:"context,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if strings.TrimSpace(askQuestion) == "" {
		return fmt.Errorf("question must not be empty")
	}
	if askTopK < 0 {
		return fmt.Errorf("top-k must not be negative")
	}

	a, err := openApp(ctx, GetConfig(), GetRootDir(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := askOutput{}
	if askShowContext {
		res, err := a.pipeline.Retrieve(ctx, askQuestion, askTopK)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		out.Context = res.Chunks
	}
	out.Answer = a.pipeline.AnswerQuestion(ctx, askQuestion, askTopK)

	if askJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if askShowContext {
		if len(out.Context) == 0 {
			fmt.Println("No passages retrieved.")
		} else {
			fmt.Println(usecase.BuildContext(domain.RetrievalResult{Chunks: out.Context}))
		}
		fmt.Println()
	}
	fmt.Println(out.Answer)
	return nil
}
