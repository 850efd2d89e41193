package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/andygrunwald/bin-collection/internal/schedule"
)

func fallbackCmd() *cobra.Command {
	var weeks int
	var date string

	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Print the predicted collection schedule",
		Long:  "Prints the schedule predicted from the fortnightly rotation, as served when the upstream service is unusable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			now := time.Now()
			if date != "" {
				now, err = time.ParseInLocation("2006-01-02", date, loc)
				if err != nil {
					return fmt.Errorf("invalid --date format, expected YYYY-MM-DD: %w", err)
				}
			}
			if !cmd.Flags().Changed("weeks") {
				weeks = cfg.FallbackWeeks
			}

			resp := schedule.GenerateFallback(now, loc, weeks)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().IntVar(&weeks, "weeks", schedule.DefaultFallbackWeeks, "Number of weeks to predict")
	cmd.Flags().StringVar(&date, "date", "", "Predict as of this date (YYYY-MM-DD), defaults to today")

	return cmd
}
