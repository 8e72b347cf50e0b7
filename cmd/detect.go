package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/PlayersCouncil/game-analytics/internal/model"
	"github.com/PlayersCouncil/game-analytics/internal/pipeline"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect archetype communities from stored correlations",
	Long: `Cluster each scope's correlation graph into candidate archetype
communities using the configured strategy, then persist them with a flex
second pass.

Strategies: louvain (partition), labelprop (overlapping propagation),
overlap (ego-network merge), clique (k-clique percolation), anchor
(top-played cards per culture as seeds).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		job := &pipeline.DetectionJob{Pool: pool, Cfg: cfg.Detection}
		job.Formats, _ = cmd.Flags().GetStringSlice("format")
		job.EraName, _ = cmd.Flags().GetString("era")
		job.NoFlex, _ = cmd.Flags().GetBool("no-flex")
		job.DryRun, _ = cmd.Flags().GetBool("dry-run")

		if s, _ := cmd.Flags().GetString("side"); s != "" {
			side, err := model.ParseSide(s)
			if err != nil {
				return err
			}
			job.Sides = []model.Side{side}
		}

		flags := cmd.Flags()
		if flags.Changed("strategy") {
			job.Cfg.Strategy, _ = flags.GetString("strategy")
		}
		if flags.Changed("min-lift") {
			job.Cfg.MinLift, _ = flags.GetFloat64("min-lift")
		}
		if flags.Changed("min-together") {
			job.Cfg.MinTogether, _ = flags.GetInt("min-together")
		}
		if flags.Changed("resolution") {
			job.Cfg.Resolution, _ = flags.GetFloat64("resolution")
		}
		if flags.Changed("retention") {
			job.Cfg.Retention, _ = flags.GetFloat64("retention")
		}
		if flags.Changed("iterations") {
			job.Cfg.Iterations, _ = flags.GetInt("iterations")
		}
		if flags.Changed("epsilon") {
			job.Cfg.Epsilon, _ = flags.GetFloat64("epsilon")
		}
		if flags.Changed("clique-size") {
			job.Cfg.CliqueSize, _ = flags.GetInt("clique-size")
		}
		if flags.Changed("anchors-per-culture") {
			job.Cfg.AnchorsPerCulture, _ = flags.GetInt("anchors-per-culture")
		}
		if flags.Changed("anchor-min-lift") {
			job.Cfg.AnchorMinLift, _ = flags.GetFloat64("anchor-min-lift")
		}
		if flags.Changed("anchor-similarity-ceiling") {
			job.Cfg.AnchorSimilarityCeil, _ = flags.GetFloat64("anchor-similarity-ceiling")
		}
		if flags.Changed("anchor-degree-ceiling") {
			job.Cfg.AnchorDegreeCeiling, _ = flags.GetInt("anchor-degree-ceiling")
		}
		if flags.Changed("degree-ceiling") {
			job.Cfg.DegreeCeiling, _ = flags.GetInt("degree-ceiling")
		}
		if flags.Changed("min-community-size") {
			job.Cfg.MinCommunitySize, _ = flags.GetInt("min-community-size")
		}
		if flags.Changed("min-membership") {
			job.Cfg.MinMembershipScore, _ = flags.GetFloat64("min-membership")
		}
		if flags.Changed("seed") {
			job.Cfg.Seed, _ = flags.GetInt64("seed")
		}

		if err := job.Run(ctx); err != nil {
			return eris.Wrap(err, "detect")
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().StringSlice("format", nil, "restrict to specific formats (default: discover from game history)")
	detectCmd.Flags().String("era", "", "restrict to one era by name")
	detectCmd.Flags().String("side", "", "restrict to one side (free_peoples or shadow)")
	detectCmd.Flags().String("strategy", "", "detection strategy: louvain, labelprop, overlap, clique, anchor")
	detectCmd.Flags().Float64("min-lift", 0, "minimum lift for a correlation edge")
	detectCmd.Flags().Int("min-together", 0, "minimum co-occurrence count for a correlation edge")
	detectCmd.Flags().Float64("resolution", 0, "louvain: higher = more, smaller communities")
	detectCmd.Flags().Float64("retention", 0, "labelprop: label share floor; lower = more overlap")
	detectCmd.Flags().Int("iterations", 0, "labelprop: propagation rounds")
	detectCmd.Flags().Float64("epsilon", 0, "overlap: merge threshold; higher = more merging")
	detectCmd.Flags().Int("clique-size", 0, "clique: k (3 looser, 5 tighter)")
	detectCmd.Flags().Int("anchors-per-culture", 0, "anchor: seeds per culture")
	detectCmd.Flags().Float64("anchor-min-lift", 0, "anchor: minimum edge weight to join a community")
	detectCmd.Flags().Float64("anchor-similarity-ceiling", 0, "anchor: skip seeds too correlated with one already chosen")
	detectCmd.Flags().Int("anchor-degree-ceiling", 0, "anchor: skip seeds with more graph neighbors than this")
	detectCmd.Flags().Int("degree-ceiling", 0, "strip cards with more graph neighbors than this before detection")
	detectCmd.Flags().Int("min-community-size", 0, "drop communities smaller than this")
	detectCmd.Flags().Float64("min-membership", 0, "drop members scoring below this, then rescore")
	detectCmd.Flags().Int64("seed", 0, "seed for stochastic strategies (0 = time-derived)")
	detectCmd.Flags().Bool("no-flex", false, "skip the flex second pass")
	detectCmd.Flags().Bool("dry-run", false, "detect and report without writing")
	rootCmd.AddCommand(detectCmd)
}
