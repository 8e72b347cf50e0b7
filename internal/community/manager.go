package community

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// Sentinel errors for the admin operations. Callers match with eris.Is.
var (
	ErrNotFound     = eris.New("community: not found")
	ErrDuplicate    = eris.New("community: membership already exists")
	ErrInvalidState = eris.New("community: operation not allowed in this state")
)

// reallocMargin is the tie-break policy for reallocation: the best candidate
// must beat the runner-up by this factor, otherwise the card is orphaned.
const reallocMargin = 1.15

// Update edits a community's human-curated metadata. Nil fields are left
// untouched. The orphan pool cannot be marked invalid.
func Update(ctx context.Context, pool db.Pool, id int64, name *string, isValid *bool, notes *string) error {
	c, err := Get(ctx, pool, id)
	if err != nil {
		return err
	}
	if c.IsOrphanPool && isValid != nil && !*isValid {
		return eris.Wrap(ErrInvalidState, "orphan pool cannot be invalidated")
	}

	if _, err := pool.Exec(ctx,
		`UPDATE card_communities SET
		   archetype_name = COALESCE($2, archetype_name),
		   is_valid = COALESCE($3, is_valid),
		   notes = COALESCE($4, notes)
		 WHERE id = $1`,
		id, name, isValid, notes,
	); err != nil {
		return eris.Wrapf(err, "community: update %d", id)
	}
	return nil
}

// Delete removes a community and reallocates its core cards. Each core card
// moves to the surviving non-orphan community whose core set it correlates
// with best, but only on a clear win: sole candidate, or best average lift
// at least 1.15x the runner-up. Everything else lands in the orphan pool as
// a core member with score zero. Returns (reallocated, orphaned).
func Delete(ctx context.Context, pool db.Pool, id int64) (int, int, error) {
	c, err := Get(ctx, pool, id)
	if err != nil {
		return 0, 0, err
	}
	if c.IsOrphanPool {
		return 0, 0, eris.Wrap(ErrInvalidState, "orphan pool cannot be deleted")
	}
	log := zap.L().With(zap.String("component", "community.manager"), zap.Int64("community", id))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "community: begin delete %d", id)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	coreCards, err := coreCards(ctx, tx, id)
	if err != nil {
		return 0, 0, err
	}

	// The community goes away first so it never appears as its own
	// reallocation candidate.
	if _, err := tx.Exec(ctx,
		`DELETE FROM card_community_members WHERE community_id = $1`, id); err != nil {
		return 0, 0, eris.Wrapf(err, "community: delete members of %d", id)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM card_communities WHERE id = $1`, id); err != nil {
		return 0, 0, eris.Wrapf(err, "community: delete %d", id)
	}

	orphanID, err := EnsureOrphanPool(ctx, tx, c.Scope)
	if err != nil {
		return 0, 0, err
	}

	reallocated, orphaned := 0, 0
	touched := map[int64]bool{orphanID: false}

	for _, card := range coreCards {
		target, score, clear, err := bestCandidate(ctx, tx, c.Scope, card)
		if err != nil {
			return 0, 0, err
		}

		if clear {
			tag, err := tx.Exec(ctx,
				`INSERT INTO card_community_members
				   (community_id, card_blueprint, membership_score, is_core, membership_type)
				 VALUES ($1, $2, $3, false, $4)
				 ON CONFLICT (community_id, card_blueprint) DO NOTHING`,
				target, card, score, string(model.MembershipFlex),
			)
			if err != nil {
				return 0, 0, eris.Wrapf(err, "community: reallocate %s to %d", card, target)
			}
			if tag.RowsAffected() > 0 {
				touched[target] = true
				reallocated++
				log.Info("card reallocated", zap.String("card", card), zap.Int64("to", target), zap.Float64("score", score))
			}
			continue
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO card_community_members
			   (community_id, card_blueprint, membership_score, is_core, membership_type)
			 VALUES ($1, $2, 0, true, $3)
			 ON CONFLICT (community_id, card_blueprint) DO NOTHING`,
			orphanID, card, string(model.MembershipCore),
		)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "community: orphan %s", card)
		}
		if tag.RowsAffected() > 0 {
			touched[orphanID] = true
			orphaned++
			log.Info("card orphaned", zap.String("card", card))
		}
	}

	dirty := make([]int64, 0, len(touched))
	for target, hit := range touched {
		if hit {
			dirty = append(dirty, target)
		}
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i] < dirty[j] })
	for _, target := range dirty {
		if err := recount(ctx, tx, target); err != nil {
			return 0, 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, eris.Wrapf(err, "community: commit delete %d", id)
	}

	log.Info("community deleted", zap.Int("reallocated", reallocated), zap.Int("orphaned", orphaned))
	return reallocated, orphaned, nil
}

// bestCandidate scores a card against every surviving non-orphan community's
// core set in the scope and applies the margin rule. Returns the winning
// community, a membership score of min(avg_lift/5, 1), and whether the win
// is clear enough to act on.
func bestCandidate(ctx context.Context, pool db.Pool, scope model.Scope, card string) (int64, float64, bool, error) {
	rows, err := pool.Query(ctx,
		`SELECT m.community_id, AVG(cc.lift) AS avg_lift
		 FROM card_community_members m
		 JOIN card_communities c ON c.id = m.community_id
		 JOIN card_correlations cc
		   ON cc.format_name = c.format_name AND cc.side = c.side
		  AND cc.era_id IS NOT DISTINCT FROM c.era_id
		  AND ((cc.card_a = $4 AND cc.card_b = m.card_blueprint)
		    OR (cc.card_b = $4 AND cc.card_a = m.card_blueprint))
		 WHERE c.format_name = $1 AND c.side = $2 AND c.era_id IS NOT DISTINCT FROM $3
		   AND NOT c.is_orphan_pool AND m.is_core
		 GROUP BY m.community_id
		 ORDER BY avg_lift DESC, m.community_id`,
		scope.Format, string(scope.Side), scope.EraID, card,
	)
	if err != nil {
		return 0, 0, false, eris.Wrapf(err, "community: candidates for %s", card)
	}
	defer rows.Close()

	type candidate struct {
		id      int64
		avgLift float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.avgLift); err != nil {
			return 0, 0, false, eris.Wrap(err, "community: scan candidate")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, false, eris.Wrapf(err, "community: candidates for %s iterate", card)
	}

	if len(candidates) == 0 {
		return 0, 0, false, nil
	}
	best := candidates[0]
	clear := len(candidates) == 1 || best.avgLift >= reallocMargin*candidates[1].avgLift
	if !clear {
		return 0, 0, false, nil
	}
	score := best.avgLift / 5.0
	if score > 1 {
		score = 1
	}
	return best.id, score, true, nil
}

// AddMember inserts a membership row and returns its score.
func AddMember(ctx context.Context, pool db.Pool, communityID int64, card string, mtype model.MembershipType, score float64) (float64, error) {
	if _, err := Get(ctx, pool, communityID); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "community: begin add to %d", communityID)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO card_community_members
		   (community_id, card_blueprint, membership_score, is_core, membership_type)
		 VALUES ($1, $2, $3, false, $4)
		 ON CONFLICT (community_id, card_blueprint) DO NOTHING`,
		communityID, card, score, string(mtype),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "community: add %s to %d", card, communityID)
	}
	if tag.RowsAffected() == 0 {
		return 0, eris.Wrapf(ErrDuplicate, "%s in %d", card, communityID)
	}
	if err := recount(ctx, tx, communityID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "community: commit add to %d", communityID)
	}
	return score, nil
}

// RemoveMember deletes a card's membership. A core card leaving a non-orphan
// community is moved to the orphan pool instead of disappearing; flex and
// custom rows are simply deleted.
func RemoveMember(ctx context.Context, pool db.Pool, communityID int64, card string) error {
	c, err := Get(ctx, pool, communityID)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "community: begin remove from %d", communityID)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var isCore bool
	err = tx.QueryRow(ctx,
		`SELECT is_core FROM card_community_members
		 WHERE community_id = $1 AND card_blueprint = $2`,
		communityID, card,
	).Scan(&isCore)
	if eris.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "%s in %d", card, communityID)
	}
	if err != nil {
		return eris.Wrapf(err, "community: lookup %s in %d", card, communityID)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM card_community_members WHERE community_id = $1 AND card_blueprint = $2`,
		communityID, card,
	); err != nil {
		return eris.Wrapf(err, "community: remove %s from %d", card, communityID)
	}
	if err := recount(ctx, tx, communityID); err != nil {
		return err
	}

	if isCore && !c.IsOrphanPool {
		orphanID, err := EnsureOrphanPool(ctx, tx, c.Scope)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO card_community_members
			   (community_id, card_blueprint, membership_score, is_core, membership_type)
			 VALUES ($1, $2, 0, true, $3)
			 ON CONFLICT (community_id, card_blueprint) DO NOTHING`,
			orphanID, card, string(model.MembershipCore),
		); err != nil {
			return eris.Wrapf(err, "community: orphan %s", card)
		}
		if err := recount(ctx, tx, orphanID); err != nil {
			return err
		}
		zap.L().Info("core card moved to orphan pool", zap.String("card", card), zap.Int64("from", communityID))
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "community: commit remove from %d", communityID)
	}
	return nil
}

// MoveMember moves a card between communities, keeping its score and
// marking it custom since the placement is now human-curated.
func MoveMember(ctx context.Context, pool db.Pool, fromID, toID int64, card string) (float64, error) {
	if _, err := Get(ctx, pool, toID); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "community: begin move %s", card)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var score float64
	err = tx.QueryRow(ctx,
		`SELECT membership_score FROM card_community_members
		 WHERE community_id = $1 AND card_blueprint = $2`,
		fromID, card,
	).Scan(&score)
	if eris.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(ErrNotFound, "%s in %d", card, fromID)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "community: lookup %s in %d", card, fromID)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM card_community_members WHERE community_id = $1 AND card_blueprint = $2
		 )`, toID, card,
	).Scan(&exists); err != nil {
		return 0, eris.Wrapf(err, "community: check %s in %d", card, toID)
	}
	if exists {
		return 0, eris.Wrapf(ErrDuplicate, "%s in %d", card, toID)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM card_community_members WHERE community_id = $1 AND card_blueprint = $2`,
		fromID, card,
	); err != nil {
		return 0, eris.Wrapf(err, "community: move %s out of %d", card, fromID)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO card_community_members
		   (community_id, card_blueprint, membership_score, is_core, membership_type)
		 VALUES ($1, $2, $3, false, $4)`,
		toID, card, score, string(model.MembershipCustom),
	); err != nil {
		return 0, eris.Wrapf(err, "community: move %s into %d", card, toID)
	}
	for _, id := range []int64{fromID, toID} {
		if err := recount(ctx, tx, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "community: commit move %s", card)
	}
	return score, nil
}

// coreCards lists a community's core cards in stable order.
func coreCards(ctx context.Context, pool db.Pool, communityID int64) ([]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT card_blueprint FROM card_community_members
		 WHERE community_id = $1 AND is_core ORDER BY card_blueprint`,
		communityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "community: core cards of %d", communityID)
	}
	defer rows.Close()

	var cards []string
	for rows.Next() {
		var card string
		if err := rows.Scan(&card); err != nil {
			return nil, eris.Wrap(err, "community: scan core card")
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "community: core cards of %d iterate", communityID)
	}
	return cards, nil
}
