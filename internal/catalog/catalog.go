// Package catalog reads card metadata maintained by the catalog builder:
// which side and culture a blueprint belongs to, and how often it is played.
package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// Sides returns the blueprint -> side mapping for every catalogued card.
// Cards with no side recorded are absent from the map.
func Sides(ctx context.Context, pool db.Pool) (map[string]model.Side, error) {
	rows, err := pool.Query(ctx,
		`SELECT blueprint, side FROM card_catalog WHERE side IS NOT NULL`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: load sides")
	}
	defer rows.Close()

	sides := make(map[string]model.Side)
	for rows.Next() {
		var blueprint, side string
		if err := rows.Scan(&blueprint, &side); err != nil {
			return nil, eris.Wrap(err, "catalog: scan side")
		}
		sides[blueprint] = model.Side(side)
	}
	return sides, eris.Wrap(rows.Err(), "catalog: load sides iterate")
}

// TopPlayed returns the perCulture most-played blueprints for each culture
// on the given side. Used to seed the anchor detection strategy.
func TopPlayed(ctx context.Context, pool db.Pool, side model.Side, perCulture int) (map[string][]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT culture, blueprint FROM (
		     SELECT culture, blueprint,
		            ROW_NUMBER() OVER (PARTITION BY culture ORDER BY play_count DESC) AS rank
		     FROM card_catalog
		     WHERE side = $1 AND culture IS NOT NULL
		 ) ranked
		 WHERE rank <= $2
		 ORDER BY culture, rank`,
		string(side), perCulture,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: top played for %s", side)
	}
	defer rows.Close()

	byCulture := make(map[string][]string)
	for rows.Next() {
		var culture, blueprint string
		if err := rows.Scan(&culture, &blueprint); err != nil {
			return nil, eris.Wrap(err, "catalog: scan top played")
		}
		byCulture[culture] = append(byCulture[culture], blueprint)
	}
	return byCulture, eris.Wrap(rows.Err(), "catalog: top played iterate")
}

// Names returns blueprint -> card name for the given blueprints, used by
// dry-run previews.
func Names(ctx context.Context, pool db.Pool, blueprints []string) (map[string]string, error) {
	if len(blueprints) == 0 {
		return map[string]string{}, nil
	}

	rows, err := pool.Query(ctx,
		`SELECT blueprint, card_name FROM card_catalog WHERE blueprint = ANY($1)`,
		blueprints,
	)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: load names")
	}
	defer rows.Close()

	names := make(map[string]string, len(blueprints))
	for rows.Next() {
		var blueprint, name string
		if err := rows.Scan(&blueprint, &name); err != nil {
			return nil, eris.Wrap(err, "catalog: scan name")
		}
		names[blueprint] = name
	}
	return names, eris.Wrap(rows.Err(), "catalog: load names iterate")
}
