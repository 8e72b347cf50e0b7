package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PlayersCouncil/game-analytics/internal/catalog"
	"github.com/PlayersCouncil/game-analytics/internal/config"
	"github.com/PlayersCouncil/game-analytics/internal/correlate"
	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/deckindex"
	"github.com/PlayersCouncil/game-analytics/internal/era"
	"github.com/PlayersCouncil/game-analytics/internal/model"
	"github.com/PlayersCouncil/game-analytics/internal/runlog"
)

// CorrelationJob recomputes pairwise card correlations for every selected
// (format, side, era) scope. Each scope is a full delete-then-insert, so two
// jobs must never mutate the same scope concurrently; the parallel fan-out
// only ever runs disjoint scopes side by side.
type CorrelationJob struct {
	Pool    db.Pool
	Cfg     config.CorrelationConfig
	Formats []string // empty = discover from game_analysis
	EraName string   // empty = every era
	Sides   []model.Side
	DryRun  bool
}

// Run executes the job. An empty eras table is fatal; individual scope
// failures are logged and skipped so the rest of the batch continues.
func (j *CorrelationJob) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "pipeline.correlation"))

	scopes, eras, err := j.resolveScopes(ctx)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		log.Info("no scopes selected")
		return nil
	}

	sides, err := catalog.Sides(ctx, j.Pool)
	if err != nil {
		return err
	}
	runs := runlog.New(j.Pool)

	log.Info("correlation run starting",
		zap.Int("scopes", len(scopes)),
		zap.Int("eras", len(eras)),
		zap.Bool("dry_run", j.DryRun),
	)

	var computed, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(j.Cfg.Parallel, 1))

	for _, sc := range scopes {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			switch j.runScope(gctx, sc, sides, runs) {
			case scopeComputed:
				computed.Add(1)
			case scopeSkipped:
				skipped.Add(1)
			case scopeFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("correlation run complete",
		zap.Int64("computed", computed.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

type scopeOutcome int

const (
	scopeComputed scopeOutcome = iota
	scopeSkipped
	scopeFailed
)

type scopeUnit struct {
	scope model.Scope
	era   *model.Era
}

func (j *CorrelationJob) runScope(ctx context.Context, sc scopeUnit, sides map[string]model.Side, runs *runlog.RunLog) scopeOutcome {
	log := zap.L().With(zap.String("component", "pipeline.correlation"), zap.String("scope", sc.scope.String()))

	builder := &deckindex.Builder{WindowSize: j.Cfg.WindowSize}
	ix, err := builder.Build(ctx, j.Pool, sc.scope.Format, sc.scope.Side, sc.era, sides)
	if err != nil {
		log.Error("deck index build failed", zap.Error(err))
		return scopeFailed
	}
	if ix.Empty() {
		log.Info("no games in scope, skipping")
		return scopeSkipped
	}

	computer := &correlate.Computer{
		MinAppearances: j.Cfg.MinAppearances,
		MinLift:        j.Cfg.MinLift,
		BatchSize:      j.Cfg.BatchSize,
	}
	batches := computer.Pairs(ix)

	if j.DryRun {
		pairs := 0
		for batch := range batches {
			pairs += len(batch)
		}
		log.Info("dry run, nothing written",
			zap.Int("cards", len(ix.CardDecks)),
			zap.Int("decks", ix.TotalDecks),
			zap.Int("pairs", pairs),
		)
		return scopeComputed
	}

	runID, err := runs.Start(ctx, "correlate", sc.scope)
	if err != nil {
		log.Error("run journal start failed", zap.Error(err))
		return scopeFailed
	}

	start := time.Now()
	rows, err := correlate.Replace(ctx, j.Pool, sc.scope, batches)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("correlation replace failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		if logErr := runs.Fail(ctx, runID, err.Error()); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
		return scopeFailed
	}

	if err := runs.Complete(ctx, runID, &runlog.Result{
		RowsWritten: rows,
		Metadata:    map[string]any{"decks": ix.TotalDecks, "cards": len(ix.CardDecks)},
	}); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}

	log.Info("scope computed", zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	return scopeComputed
}

// resolveScopes expands the format/era/side selection into concrete units of
// work. No eras is a fatal configuration error.
func (j *CorrelationJob) resolveScopes(ctx context.Context) ([]scopeUnit, []model.Era, error) {
	eras, err := era.List(ctx, j.Pool)
	if err != nil {
		return nil, nil, err
	}
	if j.EraName != "" {
		e, err := era.ByName(ctx, j.Pool, j.EraName)
		if err != nil {
			return nil, nil, err
		}
		eras = []model.Era{*e}
	}

	formats := j.Formats
	if len(formats) == 0 {
		formats, err = discoverFormats(ctx, j.Pool)
		if err != nil {
			return nil, nil, err
		}
	}

	jobSides := j.Sides
	if len(jobSides) == 0 {
		jobSides = model.Sides
	}

	var scopes []scopeUnit
	for _, format := range formats {
		for _, side := range jobSides {
			for i := range eras {
				e := eras[i]
				scopes = append(scopes, scopeUnit{
					scope: model.Scope{Format: format, Side: side, EraID: &e.ID},
					era:   &e,
				})
			}
		}
	}
	return scopes, eras, nil
}

func discoverFormats(ctx context.Context, pool db.Pool) ([]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT DISTINCT format_name FROM game_analysis ORDER BY format_name`)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: discover formats")
	}
	defer rows.Close()

	var formats []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan format")
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}
