package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/catalog"
	"github.com/PlayersCouncil/game-analytics/internal/community"
	"github.com/PlayersCouncil/game-analytics/internal/config"
	"github.com/PlayersCouncil/game-analytics/internal/correlate"
	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/detect"
	"github.com/PlayersCouncil/game-analytics/internal/era"
	"github.com/PlayersCouncil/game-analytics/internal/model"
	"github.com/PlayersCouncil/game-analytics/internal/runlog"
)

// minGraphNodes is the floor below which a scope's correlation graph is too
// sparse for any strategy to say anything useful.
const minGraphNodes = 10

// DetectionJob clusters each scope's correlation graph into archetype
// communities and persists them through the membership store.
type DetectionJob struct {
	Pool    db.Pool
	Cfg     config.DetectionConfig
	Formats []string
	EraName string // empty = every era
	Sides   []model.Side
	NoFlex  bool
	DryRun  bool
}

// Run executes detection over every selected scope. Scope failures are
// logged and skipped; a strategy failure inside a scope yields zero
// communities rather than aborting.
func (j *DetectionJob) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "pipeline.detection"))

	scopes, err := j.resolveScopes(ctx)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		log.Info("no scopes selected")
		return nil
	}
	runs := runlog.New(j.Pool)

	log.Info("detection run starting",
		zap.Int("scopes", len(scopes)),
		zap.String("strategy", j.Cfg.Strategy),
		zap.Bool("dry_run", j.DryRun),
	)

	var detected, skipped, failed int
	for _, scope := range scopes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		switch j.runScope(ctx, scope, runs) {
		case scopeComputed:
			detected++
		case scopeSkipped:
			skipped++
		case scopeFailed:
			failed++
		}
	}

	log.Info("detection run complete",
		zap.Int("detected", detected),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (j *DetectionJob) runScope(ctx context.Context, scope model.Scope, runs *runlog.RunLog) scopeOutcome {
	log := zap.L().With(zap.String("component", "pipeline.detection"), zap.String("scope", scope.String()))

	if last, err := runs.LastSuccess(ctx, "correlate", scope); err != nil {
		log.Warn("could not check correlation freshness", zap.Error(err))
	} else if last == nil {
		log.Warn("no successful correlation run recorded for this scope")
	} else {
		log.Debug("correlations last computed", zap.Time("at", *last))
	}

	g, err := correlate.LoadGraph(ctx, j.Pool, scope, j.Cfg.MinLift, j.Cfg.MinTogether)
	if err != nil {
		log.Error("graph load failed", zap.Error(err))
		return scopeFailed
	}

	if removed := g.StripHighDegree(j.Cfg.DegreeCeiling); len(removed) > 0 {
		log.Info("super-connectors stripped",
			zap.Int("count", len(removed)),
			zap.Strings("cards", removed),
		)
	}

	if g.Order() < minGraphNodes {
		log.Info("graph too small, skipping", zap.Int("nodes", g.Order()))
		return scopeSkipped
	}

	// The ego-merge strategy assumes one connected component; restrict it to
	// the largest and log the scope reduction.
	if j.Cfg.Strategy == "overlap" && !g.IsConnected() {
		before := g.Order()
		g = g.LargestComponent()
		log.Info("restricted to largest connected component",
			zap.Int("nodes_before", before),
			zap.Int("nodes_after", g.Order()),
		)
	}

	strategy, err := j.buildStrategy(ctx, scope)
	if err != nil {
		log.Error("strategy setup failed", zap.Error(err))
		return scopeFailed
	}

	start := time.Now()
	raw, err := strategy.Detect(g)
	if err != nil {
		// A failed strategy produces zero communities for the scope, it does
		// not abort the batch.
		log.Error("strategy failed, scope yields zero communities", zap.Error(err))
		raw = nil
	}
	finalized := detect.Finalize(g, raw, j.Cfg.MinCommunitySize, j.Cfg.MinMembershipScore)
	log.Info("communities detected",
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(finalized)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if j.DryRun {
		for i, d := range finalized {
			log.Info("dry run community",
				zap.Int("index", i+1),
				zap.Int("cards", len(d.Cards)),
				zap.Float64("avg_internal_lift", d.AvgInternalLift),
			)
		}
		return scopeComputed
	}

	runID, err := runs.Start(ctx, "detect", scope)
	if err != nil {
		log.Error("run journal start failed", zap.Error(err))
		return scopeFailed
	}
	fail := func(err error) scopeOutcome {
		log.Error("detection persist failed", zap.Error(err))
		if logErr := runs.Fail(ctx, runID, err.Error()); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
		return scopeFailed
	}

	deckCount, err := correlate.TotalDecks(ctx, j.Pool, scope)
	if err != nil {
		return fail(err)
	}
	if err := community.ReplaceDetected(ctx, j.Pool, scope, finalized, deckCount); err != nil {
		return fail(err)
	}
	if _, err := community.EnsureOrphanPool(ctx, j.Pool, scope); err != nil {
		return fail(err)
	}

	flexInserted := 0
	if !j.NoFlex {
		coreSets, err := community.CoreSets(ctx, j.Pool, scope)
		if err != nil {
			return fail(err)
		}
		candidates := community.FindFlex(g, coreSets, community.FlexParams{
			MinConnections: j.Cfg.FlexMinConnections,
			MinLift:        j.Cfg.FlexMinLift,
		})
		flexInserted, err = community.InsertFlex(ctx, j.Pool, candidates)
		if err != nil {
			return fail(err)
		}
	}

	members := 0
	for _, d := range finalized {
		members += len(d.Cards)
	}
	if err := runs.Complete(ctx, runID, &runlog.Result{
		RowsWritten: int64(len(finalized) + members + flexInserted),
		Metadata: map[string]any{
			"strategy":    j.Cfg.Strategy,
			"communities": len(finalized),
			"flex":        flexInserted,
		},
	}); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}

	log.Info("scope detected",
		zap.Int("communities", len(finalized)),
		zap.Int("members", members),
		zap.Int("flex", flexInserted),
	)
	return scopeComputed
}

// buildStrategy maps the configured strategy to an implementation, resolving
// anchor seeds from the card catalog when needed.
func (j *DetectionJob) buildStrategy(ctx context.Context, scope model.Scope) (detect.Strategy, error) {
	params := detect.Params{
		Resolution:              j.Cfg.Resolution,
		Retention:               j.Cfg.Retention,
		Iterations:              j.Cfg.Iterations,
		Epsilon:                 j.Cfg.Epsilon,
		CliqueSize:              j.Cfg.CliqueSize,
		AnchorMinLift:           j.Cfg.AnchorMinLift,
		AnchorSimilarityCeiling: j.Cfg.AnchorSimilarityCeil,
		AnchorDegreeCeiling:     j.Cfg.AnchorDegreeCeiling,
		Seed:                    j.Cfg.Seed,
	}
	if j.Cfg.Strategy == "anchor" {
		seeds, err := catalog.TopPlayed(ctx, j.Pool, scope.Side, j.Cfg.AnchorsPerCulture)
		if err != nil {
			return nil, err
		}
		params.AnchorSeeds = seeds
	}
	return detect.New(j.Cfg.Strategy, params)
}

func (j *DetectionJob) resolveScopes(ctx context.Context) ([]model.Scope, error) {
	eras, err := era.List(ctx, j.Pool)
	if err != nil {
		return nil, err
	}
	if j.EraName != "" {
		e, err := era.ByName(ctx, j.Pool, j.EraName)
		if err != nil {
			return nil, err
		}
		eras = []model.Era{*e}
	}

	formats := j.Formats
	if len(formats) == 0 {
		formats, err = discoverFormats(ctx, j.Pool)
		if err != nil {
			return nil, err
		}
	}

	jobSides := j.Sides
	if len(jobSides) == 0 {
		jobSides = model.Sides
	}

	var scopes []model.Scope
	for _, format := range formats {
		for _, side := range jobSides {
			for i := range eras {
				scopes = append(scopes, model.Scope{Format: format, Side: side, EraID: &eras[i].ID})
			}
		}
	}
	return scopes, nil
}
