package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mixnotes/internal/http/middleware"
	"mixnotes/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBackend(runCtx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if seed {
				if err := seedDemoData(runCtx, b); err != nil {
					return err
				}
			}

			handler := httpapi.New(b.users, b.projects, b.tracks, b.comments, b.tokens).Routes()
			handler = middleware.Recovery()(handler)
			handler = middleware.RequestLogging()(handler)
			handler = middleware.CORS(cfg.CORS.AllowedOrigins)(handler)

			srv := &http.Server{
				Addr:              cfg.Server.Addr(),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(runCtx, srv)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Create a demo account, project, track and comment if missing")
	return cmd
}

// serve blocks until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
