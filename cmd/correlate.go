package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/PlayersCouncil/game-analytics/internal/model"
	"github.com/PlayersCouncil/game-analytics/internal/pipeline"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Compute pairwise card correlations",
	Long: `Compute pairwise card correlation statistics (lift, jaccard) from deck
membership, per (format, side, era) scope.

Each scope is wholly replaced: the scoped delete commits before any insert
begins, so an interrupted run can simply be rerun. Scopes failing
individually are logged and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		job := &pipeline.CorrelationJob{Pool: pool, Cfg: cfg.Correlation}
		job.Formats, _ = cmd.Flags().GetStringSlice("format")
		job.EraName, _ = cmd.Flags().GetString("era")
		job.DryRun, _ = cmd.Flags().GetBool("dry-run")

		if s, _ := cmd.Flags().GetString("side"); s != "" {
			side, err := model.ParseSide(s)
			if err != nil {
				return err
			}
			job.Sides = []model.Side{side}
		}
		if cmd.Flags().Changed("min-appearances") {
			job.Cfg.MinAppearances, _ = cmd.Flags().GetInt("min-appearances")
		}
		if cmd.Flags().Changed("min-lift") {
			job.Cfg.MinLift, _ = cmd.Flags().GetFloat64("min-lift")
		}
		if cmd.Flags().Changed("window") {
			job.Cfg.WindowSize, _ = cmd.Flags().GetInt64("window")
		}
		if cmd.Flags().Changed("parallel") {
			job.Cfg.Parallel, _ = cmd.Flags().GetInt("parallel")
		}

		if err := job.Run(ctx); err != nil {
			return eris.Wrap(err, "correlate")
		}
		return nil
	},
}

func init() {
	correlateCmd.Flags().StringSlice("format", nil, "restrict to specific formats (default: discover from game history)")
	correlateCmd.Flags().String("era", "", "restrict to one era by name")
	correlateCmd.Flags().String("side", "", "restrict to one side (free_peoples or shadow)")
	correlateCmd.Flags().Int("min-appearances", 0, "minimum deck appearances for a card to be correlated")
	correlateCmd.Flags().Float64("min-lift", 0, "minimum lift for a pair to be stored")
	correlateCmd.Flags().Int64("window", 0, "game-id window size for bounded deck loading")
	correlateCmd.Flags().Int("parallel", 0, "number of disjoint scopes to process concurrently")
	correlateCmd.Flags().Bool("dry-run", false, "compute and report without writing")
	rootCmd.AddCommand(correlateCmd)
}
