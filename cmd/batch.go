package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/moodtales/storyteller/internal/batch"
	"github.com/spf13/cobra"
)

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var dir string
	var out string
	var concurrency int
	var resume bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate stories for every file in a directory",
		Long: `Walks a directory, generates a mood analysis and story opening for every file,
and writes one record per file. The output format follows the file extension:
.yaml, .jsonl or .parquet.`,
		Example: `  # Generate stories for a folder of photos
  storyteller batch --dir ./photos --out stories.yaml

  # Four at a time with Ollama, written as Parquet
  storyteller batch --dir ./docs --out stories.parquet --provider ollama --concurrency 4

  # Retry only the files that failed last time
  storyteller batch --dir ./photos --out stories.jsonl --resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("input directory not found: %s", dir)
			}

			backend, err := opts.backend()
			if err != nil {
				return err
			}

			var previous []batch.Record
			if resume {
				previous, err = batch.Load(out)
				if err != nil {
					return fmt.Errorf("failed to load previous results: %w", err)
				}
			}

			slog.Info("Starting batch run", "dir", dir, "provider", backend.Name, "model", backend.Model)
			records, err := batch.Run(cmd.Context(), batch.Options{
				Dir:         dir,
				Concurrency: concurrency,
				Skip:        batch.Completed(previous),
				Exclude:     []string{out},
			}, backend.Generator)
			if err != nil {
				return err
			}

			all := batch.Merge(previous, records)
			cfg := batch.RunConfig{
				Provider:    backend.Name,
				Model:       backend.Model,
				Dir:         dir,
				Concurrency: concurrency,
				Timestamp:   time.Now().Format("2006-01-02_15-04-05"),
			}
			if err := batch.Save(out, cfg, all); err != nil {
				return err
			}

			batch.PrintSummary(cmd.OutOrStdout(), batch.Summarize(records))
			fmt.Fprintf(cmd.OutOrStdout(), "\nResults saved to: %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of source files")
	cmd.Flags().StringVar(&out, "out", "stories.yaml", "Output file (.yaml, .jsonl, or .parquet)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Number of files to process at once")
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip files that already have a story in the output file")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
