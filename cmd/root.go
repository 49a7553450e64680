package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/moodtales/storyteller/internal/config"
	"github.com/moodtales/storyteller/internal/gateway"
	"github.com/moodtales/storyteller/internal/providers"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	provider string
	model    string
	verbose  bool

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "storyteller",
		Short: "Turn images, documents and web pages into story openings",
		Long: `Storyteller reads a creative source (an image, a PDF, a Word or Excel document,
a text file or a URL), asks a generative model for a short mood analysis and
the opening of a story in the same atmosphere, narrates it, and lets you chat
about it.

Providers: gemini (default), openai, ollama.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			// Load .env and environment
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if opts.provider != "" {
				cfg.Provider = opts.provider
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "LLM provider: gemini, openai, or ollama (default from STORY_PROVIDER)")
	cmd.PersistentFlags().StringVar(&opts.model, "model", "", "Model name (default depends on provider)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))

	return cmd
}

func (o *globalOptions) backend() (*providers.Backend, error) {
	return gateway.NewService(o.cfg).Backend(o.cfg.Provider, o.model)
}
