package correlate

import (
	"context"
	"iter"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/graph"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

var correlationColumns = []string{
	"format_name", "side", "era_id",
	"card_a", "card_b",
	"together_count", "card_a_count", "card_b_count", "total_decks",
	"jaccard", "lift", "computed_at",
}

// Replace persists a scope's correlations as a full replacement: the scoped
// delete is committed before any insert begins, so an interrupted run leaves
// no straddling partial state and is safe to rerun.
func Replace(ctx context.Context, pool db.Pool, scope model.Scope, batches iter.Seq[[]model.Correlation]) (int64, error) {
	log := zap.L().With(zap.String("component", "correlate.store"), zap.String("scope", scope.String()))

	if _, err := pool.Exec(ctx,
		`DELETE FROM card_correlations WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3`,
		scope.Format, string(scope.Side), scope.EraID,
	); err != nil {
		return 0, eris.Wrapf(err, "correlate: delete scope %s", scope)
	}

	now := time.Now().UTC()
	var total int64

	for batch := range batches {
		rows := make([][]any, 0, len(batch))
		for _, p := range batch {
			rows = append(rows, []any{
				scope.Format, string(scope.Side), scope.EraID,
				p.CardA, p.CardB,
				p.TogetherCount, p.CardACount, p.CardBCount, p.TotalDecks,
				p.Jaccard, p.Lift, now,
			})
		}

		n, err := db.CopyFrom(ctx, pool, "card_correlations", correlationColumns, rows)
		if err != nil {
			return total, eris.Wrapf(err, "correlate: insert batch for %s", scope)
		}
		total += n
		log.Debug("batch inserted", zap.Int64("total_rows", total))
	}

	log.Info("correlations replaced", zap.Int64("rows", total))
	return total, nil
}

// TotalDecks reports the deck population behind a scope's stored
// correlations, zero when the scope has none.
func TotalDecks(ctx context.Context, pool db.Pool, scope model.Scope) (int, error) {
	var total int
	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(total_decks), 0) FROM card_correlations
		 WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3`,
		scope.Format, string(scope.Side), scope.EraID,
	).Scan(&total); err != nil {
		return 0, eris.Wrapf(err, "correlate: total decks for %s", scope)
	}
	return total, nil
}

// LoadGraph builds the correlation-weighted graph for a scope. Edges are
// pairs meeting both the lift and co-occurrence floors; edge weight is lift.
func LoadGraph(ctx context.Context, pool db.Pool, scope model.Scope, minLift float64, minTogether int) (*graph.Graph, error) {
	rows, err := pool.Query(ctx,
		`SELECT card_a, card_b, lift, together_count
		 FROM card_correlations
		 WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3
		   AND lift >= $4 AND together_count >= $5`,
		scope.Format, string(scope.Side), scope.EraID, minLift, minTogether,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "correlate: load graph for %s", scope)
	}
	defer rows.Close()

	g := graph.New()
	for rows.Next() {
		var a, b string
		var lift float64
		var together int
		if err := rows.Scan(&a, &b, &lift, &together); err != nil {
			return nil, eris.Wrap(err, "correlate: scan edge")
		}
		g.AddEdge(a, b, lift)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "correlate: load graph iterate")
	}

	zap.L().Info("correlation graph built",
		zap.String("scope", scope.String()),
		zap.Int("nodes", g.Order()),
		zap.Int("edges", g.Size()),
	)
	return g, nil
}
