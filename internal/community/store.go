// Package community persists detected card communities and manages the
// core/flex/custom membership lifecycle, including the curation operations
// exposed to the admin CLI.
package community

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/detect"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

var memberColumns = []string{
	"community_id", "card_blueprint", "membership_score", "is_core", "membership_type",
}

// ReplaceDetected replaces a scope's detection output wholesale. Core and
// flex member rows are deleted, communities left memberless are removed
// (custom members keep their community alive, the orphan pool always
// survives), and the new communities are inserted indexed by descending
// size. A member is core when it connects to at least half the community.
func ReplaceDetected(ctx context.Context, pool db.Pool, scope model.Scope, detected []detect.Detected, deckCount int) error {
	log := zap.L().With(zap.String("component", "community.store"), zap.String("scope", scope.String()))

	if _, err := pool.Exec(ctx,
		`DELETE FROM card_community_members
		 WHERE membership_type IN ('core', 'flex')
		   AND community_id IN (
		     SELECT id FROM card_communities
		     WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3
		   )`,
		scope.Format, string(scope.Side), scope.EraID,
	); err != nil {
		return eris.Wrapf(err, "community: delete detected members for %s", scope)
	}

	if _, err := pool.Exec(ctx,
		`DELETE FROM card_communities
		 WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3
		   AND NOT is_orphan_pool
		   AND NOT EXISTS (
		     SELECT 1 FROM card_community_members m WHERE m.community_id = card_communities.id
		   )`,
		scope.Format, string(scope.Side), scope.EraID,
	); err != nil {
		return eris.Wrapf(err, "community: delete empty communities for %s", scope)
	}

	var nextIndex int
	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(community_index), 0) + 1 FROM card_communities
		 WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3`,
		scope.Format, string(scope.Side), scope.EraID,
	).Scan(&nextIndex); err != nil {
		return eris.Wrapf(err, "community: next index for %s", scope)
	}

	now := time.Now().UTC()
	for _, d := range detected {
		var id int64
		if err := pool.QueryRow(ctx,
			`INSERT INTO card_communities
			   (format_name, side, era_id, community_index, card_count, deck_count,
			    avg_internal_lift, is_valid, is_orphan_pool, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, true, false, $8)
			 RETURNING id`,
			scope.Format, string(scope.Side), scope.EraID, nextIndex,
			len(d.Cards), deckCount, d.AvgInternalLift, now,
		).Scan(&id); err != nil {
			return eris.Wrapf(err, "community: insert community %d for %s", nextIndex, scope)
		}
		nextIndex++

		rows := make([][]any, 0, len(d.Cards))
		for _, card := range d.Cards {
			score := d.Scores[card]
			rows = append(rows, []any{
				id, card, score, score >= 0.5, string(model.MembershipCore),
			})
		}
		if _, err := db.CopyFrom(ctx, pool, "card_community_members", memberColumns, rows); err != nil {
			return eris.Wrapf(err, "community: insert members of community %d", id)
		}
	}

	// Communities carried over by custom members need their live count back
	// in sync now that the detected rows are gone.
	if _, err := pool.Exec(ctx,
		`UPDATE card_communities c SET card_count = (
		   SELECT COUNT(*) FROM card_community_members m WHERE m.community_id = c.id
		 )
		 WHERE c.format_name = $1 AND c.side = $2 AND c.era_id IS NOT DISTINCT FROM $3`,
		scope.Format, string(scope.Side), scope.EraID,
	); err != nil {
		return eris.Wrapf(err, "community: recount for %s", scope)
	}

	log.Info("communities replaced", zap.Int("communities", len(detected)))
	return nil
}

// EnsureOrphanPool finds or creates the scope's singleton orphan pool. The
// pool holds index 0 so detected communities always sort after it.
func EnsureOrphanPool(ctx context.Context, pool db.Pool, scope model.Scope) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx,
		`SELECT id FROM card_communities
		 WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3 AND is_orphan_pool`,
		scope.Format, string(scope.Side), scope.EraID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !eris.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "community: find orphan pool for %s", scope)
	}

	if err := pool.QueryRow(ctx,
		`INSERT INTO card_communities
		   (format_name, side, era_id, community_index, card_count, deck_count,
		    avg_internal_lift, archetype_name, is_valid, is_orphan_pool, detected_at)
		 VALUES ($1, $2, $3, 0, 0, 0, 0, 'Orphan Pool', true, true, $4)
		 RETURNING id`,
		scope.Format, string(scope.Side), scope.EraID, time.Now().UTC(),
	).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "community: create orphan pool for %s", scope)
	}
	zap.L().Info("orphan pool created", zap.String("scope", scope.String()), zap.Int64("id", id))
	return id, nil
}

// Get loads one community by id.
func Get(ctx context.Context, pool db.Pool, id int64) (model.Community, error) {
	var c model.Community
	var side string
	err := pool.QueryRow(ctx,
		`SELECT id, format_name, side, era_id, community_index, card_count, deck_count,
		        avg_internal_lift, archetype_name, is_valid, is_orphan_pool, notes
		 FROM card_communities WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.Scope.Format, &side, &c.Scope.EraID, &c.CommunityIndex,
		&c.CardCount, &c.DeckCount, &c.AvgInternalLift,
		&c.ArchetypeName, &c.IsValid, &c.IsOrphanPool, &c.Notes,
	)
	if eris.Is(err, pgx.ErrNoRows) {
		return model.Community{}, ErrNotFound
	}
	if err != nil {
		return model.Community{}, eris.Wrapf(err, "community: get %d", id)
	}
	c.Scope.Side = model.Side(side)
	return c, nil
}

// List returns a scope's communities, orphan pool first, then by index.
func List(ctx context.Context, pool db.Pool, scope model.Scope) ([]model.Community, error) {
	rows, err := pool.Query(ctx,
		`SELECT id, format_name, side, era_id, community_index, card_count, deck_count,
		        avg_internal_lift, archetype_name, is_valid, is_orphan_pool, notes
		 FROM card_communities
		 WHERE format_name = $1 AND side = $2 AND era_id IS NOT DISTINCT FROM $3
		 ORDER BY community_index`,
		scope.Format, string(scope.Side), scope.EraID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "community: list %s", scope)
	}
	defer rows.Close()

	var out []model.Community
	for rows.Next() {
		var c model.Community
		var side string
		if err := rows.Scan(
			&c.ID, &c.Scope.Format, &side, &c.Scope.EraID, &c.CommunityIndex,
			&c.CardCount, &c.DeckCount, &c.AvgInternalLift,
			&c.ArchetypeName, &c.IsValid, &c.IsOrphanPool, &c.Notes,
		); err != nil {
			return nil, eris.Wrap(err, "community: scan community")
		}
		c.Scope.Side = model.Side(side)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "community: list %s iterate", scope)
	}
	return out, nil
}

// Members returns a community's membership rows, core first, then by score.
func Members(ctx context.Context, pool db.Pool, communityID int64) ([]model.Member, error) {
	rows, err := pool.Query(ctx,
		`SELECT community_id, card_blueprint, membership_score, is_core, membership_type
		 FROM card_community_members
		 WHERE community_id = $1
		 ORDER BY is_core DESC, membership_score DESC, card_blueprint`,
		communityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "community: members of %d", communityID)
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		var m model.Member
		var mtype string
		if err := rows.Scan(&m.CommunityID, &m.CardBlueprint, &m.MembershipScore, &m.IsCore, &mtype); err != nil {
			return nil, eris.Wrap(err, "community: scan member")
		}
		m.Type = model.MembershipType(mtype)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "community: members of %d iterate", communityID)
	}
	return out, nil
}

// recount keeps card_count a live count, never an increment.
func recount(ctx context.Context, pool db.Pool, communityID int64) error {
	if _, err := pool.Exec(ctx,
		`UPDATE card_communities SET card_count = (
		   SELECT COUNT(*) FROM card_community_members WHERE community_id = $1
		 ) WHERE id = $1`, communityID,
	); err != nil {
		return eris.Wrapf(err, "community: recount %d", communityID)
	}
	return nil
}
