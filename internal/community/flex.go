package community

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/graph"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// FlexParams tunes the flex second pass. MinConnections gates both which
// communities qualify (core set at least that large) and how many edges a
// candidate card needs into the core set.
type FlexParams struct {
	MinConnections int
	MinLift        float64
}

// FlexCandidate is one card qualifying as a flex member of a community.
type FlexCandidate struct {
	CommunityID int64
	Card        string
	Score       float64
}

// FindFlex scans the correlation graph for cards that correlate strongly
// with a community's core set without belonging to it. A card qualifies when
// it has at least MinConnections edges into the core set averaging at least
// MinLift; its score is the average lift scaled so 5 or more maps to 1.0.
func FindFlex(g *graph.Graph, coreSets map[int64][]string, p FlexParams) []FlexCandidate {
	var out []FlexCandidate

	ids := make([]int64, 0, len(coreSets))
	for id := range coreSets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, communityID := range ids {
		core := coreSets[communityID]
		if len(core) < p.MinConnections {
			continue
		}
		inCore := make(map[string]bool, len(core))
		for _, card := range core {
			inCore[card] = true
		}

		for _, card := range g.Nodes() {
			if inCore[card] {
				continue
			}
			var total float64
			edges := 0
			for _, member := range core {
				if w, ok := g.Weight(card, member); ok {
					total += w
					edges++
				}
			}
			if edges < p.MinConnections {
				continue
			}
			avg := total / float64(edges)
			if avg < p.MinLift {
				continue
			}
			score := avg / 5.0
			if score > 1 {
				score = 1
			}
			out = append(out, FlexCandidate{CommunityID: communityID, Card: card, Score: score})
		}
	}
	return out
}

// InsertFlex persists flex candidates, skipping any card already a member of
// the target community.
func InsertFlex(ctx context.Context, pool db.Pool, candidates []FlexCandidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		tag, err := pool.Exec(ctx,
			`INSERT INTO card_community_members
			   (community_id, card_blueprint, membership_score, is_core, membership_type)
			 VALUES ($1, $2, $3, false, $4)
			 ON CONFLICT (community_id, card_blueprint) DO NOTHING`,
			c.CommunityID, c.Card, c.Score, string(model.MembershipFlex),
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "community: insert flex %s into %d", c.Card, c.CommunityID)
		}
		if tag.RowsAffected() > 0 {
			inserted++
			if err := recount(ctx, pool, c.CommunityID); err != nil {
				return inserted, err
			}
		}
	}
	if inserted > 0 {
		zap.L().Info("flex members inserted", zap.Int("count", inserted))
	}
	return inserted, nil
}

// CoreSets loads each non-orphan community's core cards for a scope.
func CoreSets(ctx context.Context, pool db.Pool, scope model.Scope) (map[int64][]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT m.community_id, m.card_blueprint
		 FROM card_community_members m
		 JOIN card_communities c ON c.id = m.community_id
		 WHERE c.format_name = $1 AND c.side = $2 AND c.era_id IS NOT DISTINCT FROM $3
		   AND NOT c.is_orphan_pool AND m.is_core
		 ORDER BY m.community_id, m.card_blueprint`,
		scope.Format, string(scope.Side), scope.EraID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "community: core sets for %s", scope)
	}
	defer rows.Close()

	sets := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var card string
		if err := rows.Scan(&id, &card); err != nil {
			return nil, eris.Wrap(err, "community: scan core card")
		}
		sets[id] = append(sets[id], card)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "community: core sets for %s iterate", scope)
	}
	return sets, nil
}
