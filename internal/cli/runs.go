package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/soomorita/macro-micro-linkage/internal/app"
)

var (
	runsStatsID string
	runsLimit   int
	runsPrune   time.Duration
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Display or prune archived forecast runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runsPrune > 0 {
			return getApp().PruneRuns(cmd.Context(), runsPrune)
		}

		opts := app.ShowOptions{
			StatsDataID: runsStatsID,
			Limit:       runsLimit,
		}

		return getApp().ShowRuns(cmd.Context(), opts)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatsID, "stats-id", "", "e-Stat statsDataId to list runs for")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to display")
	runsCmd.Flags().DurationVar(&runsPrune, "prune", 0, "Delete runs older than this retention window (e.g. 720h) instead of listing")
}
