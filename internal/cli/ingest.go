package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/config"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents into the index",
	Long: `Extract, chunk and embed PDF, DOCX and TXT files. A directory is walked
recursively using the ingest include/exclude patterns. Re-ingesting a file
replaces its previous chunks; unchanged files are skipped.
The index is stored in .docrag/index.db within the data directory.

Examples:
  docrag ingest .                 # Ingest current directory
  docrag ingest handbook.pdf      # Ingest a single file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest files even when unchanged")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Determine path to ingest
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	cfg := GetConfig()
	a, err := openApp(ctx, cfg, GetRootDir(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	if ingestForce {
		a.ingest.SetForce(true)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		res, err := a.ingest.Ingest(ctx, path, data)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Printf("%s is unchanged (%d chunks)\n", res.Source, res.ChunksStored)
		} else {
			fmt.Printf("Ingested %s: %d chunks\n", res.Source, res.ChunksStored)
		}
		return nil
	}

	total, err := a.ingest.CountFiles(path)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Printf("No supported documents found in %s\n", path)
		return nil
	}

	fmt.Printf("Scanning %s...\n", path)
	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	start := time.Now()
	processed := 0
	result, err := a.ingest.IngestDir(ctx, path, func(string) {
		processed++
		_ = bar.Set(processed)

		// Calculate and display ETA
		rate := float64(processed) / time.Since(start).Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Printf("  Files ingested: %d\n", result.FilesIngested)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", result.FilesSkipped)
	fmt.Printf("  Chunks stored:  %d\n", result.ChunksStored)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", config.IndexDBPath(GetRootDir()))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
