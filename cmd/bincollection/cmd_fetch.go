package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the collection schedule once",
		Long: `Fetches the collection schedule once and prints it as JSON. The usual
degradation applies, so a blocked or unreachable upstream prints the
predicted schedule. Useful for testing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if cfg.UPRN == "" {
				return fmt.Errorf("--uprn is required")
			}

			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx := context.Background()
			db, err := openArchive(ctx, logger)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			c := newCollector(loc, nil, db, logger)
			resp, entry, err := c.Collections(ctx)
			if err != nil {
				return fmt.Errorf("fetching collection schedule: %w", err)
			}

			logger.Info().
				Str("source", string(entry.Source)).
				Int("collections", len(resp.Collections)).
				Msg("fetch completed")

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}
