package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PlayersCouncil/game-analytics/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List pipeline runs",
	Long:  "Shows the analysis run journal, most recent first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := runlog.New(pool).ListAll(ctx)
		if err != nil {
			return err
		}

		for _, e := range entries {
			completed := "-"
			if e.CompletedAt != nil {
				completed = e.CompletedAt.Format("2006-01-02 15:04:05")
			}
			line := fmt.Sprintf("%s  %-9s %-28s %-8s rows=%-8d started=%s completed=%s",
				e.ID, e.Job, e.Scope, e.Status, e.RowsWritten,
				e.StartedAt.Format("2006-01-02 15:04:05"), completed)
			if e.Error != "" {
				line += "  error=" + e.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
