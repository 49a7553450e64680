package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var sourceType string
	var narrateOut string
	var format string

	cmd := &cobra.Command{
		Use:   "generate <file|url>",
		Short: "Generate a mood analysis and story opening",
		Long: `Reads a file or URL, sends it to the configured provider, and prints the
mood analysis and story opening. With --narrate the story is also synthesized
to an audio file.`,
		Example: `  # Generate from a photo
  storyteller generate harbor.jpg

  # Generate from a web page with OpenAI and print JSON
  storyteller generate https://example.com/lighthouse --provider openai --format json

  # Generate and narrate to a WAV file
  storyteller generate notes.docx --narrate story.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("invalid format %q: must be 'text', 'json', or 'yaml'", format)
			}

			backend, err := opts.backend()
			if err != nil {
				return err
			}

			sess, err := openSession(args[0], sourceType, opts.cfg.MaxUploadBytes)
			if err != nil {
				return err
			}

			result, err := sess.Generate(cmd.Context(), backend.Generator)
			if err != nil {
				return err
			}

			if err := printResult(cmd.OutOrStdout(), format, result); err != nil {
				return err
			}

			if narrateOut == "" {
				return nil
			}
			if _, err := sess.ToggleNarration(cmd.Context(), backend.Narrator); err != nil {
				return fmt.Errorf("failed to narrate story: %w", err)
			}
			audio, ok := sess.Audio()
			if !ok {
				return fmt.Errorf("no narration audio returned")
			}
			if err := os.WriteFile(narrateOut, audio.Data, 0644); err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
			slog.Info("Narration saved", "path", narrateOut, "media_type", audio.MediaType, "bytes", len(audio.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Source type: image, pdf, url, or text (default: detected)")
	cmd.Flags().StringVar(&narrateOut, "narrate", "", "Write narration audio to this file")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, or yaml")

	return cmd
}

func printResult(w io.Writer, format string, result providers.GenerationResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		return yaml.NewEncoder(w).Encode(result)
	default:
		_, err := fmt.Fprintf(w, "Mood\n----\n%s\n\nStory\n-----\n%s\n", result.Analysis, result.Story)
		return err
	}
}
