// Package main provides the entry point for the bin collection service CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andygrunwald/bin-collection/internal/api/veolia"
	"github.com/andygrunwald/bin-collection/internal/collector"
	"github.com/andygrunwald/bin-collection/internal/config"
	"github.com/andygrunwald/bin-collection/internal/database"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

var cfg *config.Config

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "bincollection",
		Short: "Bin Collection - Know which bin goes out this week",
		Long: `Bin Collection serves the upcoming waste collection dates of one premises
to a household dashboard.

Features:
  - Live schedule from the council's notice board, cached for 7 days
  - Stale data and a predicted rotation when the upstream service fails
  - Test mode with canned scenarios for dashboard development
  - Optional PostgreSQL archive of every fetch
  - Prometheus metrics and health endpoints`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(v)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	// Global flags
	config.RegisterFlags(rootCmd.PersistentFlags())
	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Add subcommands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(fallbackCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger() zerolog.Logger {
	var logger zerolog.Logger

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Logger()
	}

	return logger
}

// openArchive connects to the fetch archive when a DSN is configured.
// It returns nil without a DSN.
func openArchive(ctx context.Context, logger zerolog.Logger) (*database.DB, error) {
	if cfg.PostgresDSN == "" {
		return nil, nil
	}

	db, err := database.New(cfg.PostgresDSN, cfg.StoreRawResponse, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newCollector wires the upstream client into a collector. metrics and
// archive are optional.
func newCollector(loc *time.Location, metrics collector.Recorder, archive *database.DB, logger zerolog.Logger) *collector.Collector {
	provider := veolia.New(logger, veolia.WithURL(cfg.UpstreamURL))

	opts := []collector.Option{
		collector.WithLocation(loc),
		collector.WithFallback(cfg.FallbackEnabled),
		collector.WithFallbackWeeks(cfg.FallbackWeeks),
	}
	if metrics != nil {
		opts = append(opts, collector.WithMetrics(metrics))
	}
	if archive != nil {
		opts = append(opts, collector.WithArchive(archive))
	}

	return collector.New(provider, cfg.UPRN, logger, opts...)
}

// newRegistry returns a registry with the Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
