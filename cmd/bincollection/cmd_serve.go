package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andygrunwald/bin-collection/internal/http"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long:  "Serves the collection schedule, health and metrics endpoints. The schedule is fetched on demand and cached.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			if cfg.UPRN == "" && !cfg.TestMode {
				logger.Warn().Msg("UPRN is not configured, /api/bin-collection will answer with an error")
			}

			logger.Info().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("httpAddr", cfg.HTTPAddr).
				Str("uprn", cfg.UPRN).
				Str("timezone", loc.String()).
				Bool("testMode", cfg.TestMode).
				Bool("archive", cfg.PostgresDSN != "").
				Msg("starting bin collection service")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			db, err := openArchive(ctx, logger)
			if err != nil {
				return err
			}
			var archive http.ArchiveReporter
			if db != nil {
				defer db.Close()
				archive = db
			}

			reg := newRegistry()
			metrics := http.NewMetrics(reg)
			c := newCollector(loc, metrics, db, logger)

			httpServer := http.NewServer(http.ServerConfig{
				Addr:        cfg.HTTPAddr,
				UPRN:        c.UPRN(),
				TestMode:    cfg.TestMode,
				TestVariant: cfg.Scenario(),
				CORSOrigin:  cfg.CORSOrigin,
				Location:    c.Location(),
				Now:         c.Now,
			}, c, archive, metrics, reg, logger)

			// Setup signal handling
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			// Start HTTP server in goroutine
			errCh := make(chan error, 1)
			go func() {
				if err := httpServer.Start(); err != nil {
					errCh <- err
				}
				cancel()
			}()

			// Wait for signal
			var serveErr error
			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			case <-ctx.Done():
				select {
				case serveErr = <-errCh:
					logger.Error().Err(serveErr).Msg("HTTP server error")
				default:
				}
			}

			// Graceful shutdown
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP server shutdown error")
			}

			logger.Info().Msg("shutdown complete")
			if serveErr != nil {
				return fmt.Errorf("serving HTTP: %w", serveErr)
			}
			return nil
		},
	}
}
