package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/moodtales/storyteller/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storyteller HTTP API",
		Long: `Starts the Storyteller HTTP API on the specified port.

Clients create a session, pick a source type, upload a file or set a URL,
then generate a story, toggle narration and chat. Session changes are
streamed over a websocket at /api/sessions/{id}/events.`,
		Example: `  # Start server on the port from PORT (default 8888)
  storyteller serve

  # Start server on custom port with OpenAI
  storyteller serve --port 3000 --provider openai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = opts.cfg.Port
			}
			handler := handlers.New(opts.cfg, opts.cfg.Provider, opts.model)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Storyteller API available", "addr", addr, "url", "http://localhost"+addr, "provider", opts.cfg.Provider)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from PORT, 8888)")

	return cmd
}
