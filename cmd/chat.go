package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var sourceType string

	cmd := &cobra.Command{
		Use:   "chat <file|url>",
		Short: "Generate a story, then chat about it",
		Long: `Generates a story opening for the source, then reads messages from stdin and
answers each one grounded in the story, its mood analysis and, for images,
the image itself. Type /quit or send EOF to leave.`,
		Example: `  storyteller chat harbor.jpg
  storyteller chat https://example.com/lighthouse --provider gemini`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			out := cmd.OutOrStdout()
			if err := printResult(out, "text", result); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nAsk about the story (/quit to exit).")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/quit" || line == "/exit" {
					return nil
				}

				turn, err := sess.SendChat(cmd.Context(), backend.Chatter, line)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n\n", turn.Reply)
			}
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Source type: image, pdf, url, or text (default: detected)")

	return cmd
}
