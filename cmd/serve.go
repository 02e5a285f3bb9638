package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arcana-family/arcana/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Arcana API server",
		Long: `Starts the Arcana HTTP API.

The API scans shelf photos (POST /api/books/scan) and manages the catalog.
When a static directory is configured the web app is served from /.`,
		Example: `  # Start server on the default address :8888
  arcana serve

  # Start server on a custom address and serve the web app
  arcana serve --addr :3000 --static ./web/dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := g.cfg, g.logger

			a, err := newApp(cmd.Context(), cfg, logger, appNeeds{pipeline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			handler := handlers.New(a.pipeline, a.store, a.cards, handlers.Options{
				MaxUploadBytes: cfg.UploadMaxBytes,
				StaticDir:      cfg.StaticDir,
				Owners:         cfg.HouseholdOwners(),
				Version:        g.version,
				Logger:         logger.With("component", "http"),
			})

			server := &http.Server{
				Addr:              cfg.ServerAddr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				logger.Info("Arcana API available", "addr", cfg.ServerAddr, "provider", cfg.Provider, "threshold", "70%")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("Server shutdown failed", "err", err)
					return err
				}
				logger.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().String("addr", "", "address to listen on (default :8888)")
	cmd.Flags().String("static", "", "directory holding the web app")
	cmd.Flags().String("provider", "", "recognition provider: gemini, openai or ollama")
	cmd.Flags().String("model", "", "recognition model")
	cmd.Flags().Int("concurrency", 0, "books enriched in parallel per scan")

	return cmd
}
