package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), GetConfig(), GetRootDir(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.store.ListDocs()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested yet. Run 'docrag ingest' first.")
		return nil
	}

	count, err := a.index.Count(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tCHUNKS\tINGESTED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%d\t%s\n", d.Source, d.Chunks, d.IngestedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	fmt.Printf("\n%d documents, %d chunks indexed\n", len(docs), count)
	return nil
}
