// Package deckindex loads deck membership for one (format, side, era) scope
// under bounded memory.
package deckindex

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// Index is the inverted deck membership for a scope. Deck ids are dense
// integers assigned per (game, player); CardDecks holds each card's sorted
// deck-id list so pair intersections run on sorted slices.
type Index struct {
	CardDecks  map[string][]int32
	TotalDecks int
}

// Empty reports whether the scope had no qualifying decks. Callers treat an
// empty index as a non-fatal skip.
func (ix *Index) Empty() bool {
	return ix.TotalDecks == 0
}

// Builder loads raw deck rows in fixed-size game-id windows so peak memory
// stays bounded regardless of format size.
type Builder struct {
	WindowSize int64
}

type deckKey struct {
	gameID   int64
	playerID string
}

// Build loads the inverted index for a format, side and era window. Cards
// are filtered to the requested side via the catalog mapping; cross-side
// mixing is forbidden.
func (b *Builder) Build(ctx context.Context, pool db.Pool, format string, side model.Side, era *model.Era, sides map[string]model.Side) (*Index, error) {
	log := zap.L().With(
		zap.String("component", "deckindex"),
		zap.String("format", format),
		zap.String("side", string(side)),
	)

	window := b.WindowSize
	if window <= 0 {
		window = 10000
	}

	// Determine the game-id range for this format and era once, then walk
	// it in fixed-size windows.
	minID, maxID, gameCount, err := gameRange(ctx, pool, format, era)
	if err != nil {
		return nil, err
	}
	if gameCount == 0 {
		log.Info("no games in scope")
		return &Index{CardDecks: map[string][]int32{}}, nil
	}
	log.Info("scanning games",
		zap.Int64("games", gameCount),
		zap.Int64("min_game_id", minID),
		zap.Int64("max_game_id", maxID),
	)

	deckIDs := make(map[deckKey]int32)
	decks := make(map[int32]map[string]struct{})

	for lo := minID; lo <= maxID; lo += window {
		hi := lo + window
		if err := b.loadWindow(ctx, pool, format, era, lo, hi, func(gameID int64, playerID, blueprint string) {
			if sides[blueprint] != side {
				return
			}
			key := deckKey{gameID, playerID}
			id, ok := deckIDs[key]
			if !ok {
				id = int32(len(deckIDs))
				deckIDs[key] = id
				decks[id] = make(map[string]struct{})
			}
			decks[id][blueprint] = struct{}{}
		}); err != nil {
			return nil, err
		}
	}

	ix := &Index{
		CardDecks:  invert(decks),
		TotalDecks: len(decks),
	}
	log.Info("deck index built",
		zap.Int("decks", ix.TotalDecks),
		zap.Int("cards", len(ix.CardDecks)),
	)
	return ix, nil
}

func gameRange(ctx context.Context, pool db.Pool, format string, era *model.Era) (minID, maxID, count int64, err error) {
	query := `SELECT MIN(game_id), MAX(game_id), COUNT(*) FROM game_analysis WHERE format_name = $1 AND game_date >= $2`
	args := []any{format, era.StartsOn}
	if era.EndsOn != nil {
		query += ` AND game_date <= $3`
		args = append(args, *era.EndsOn)
	}

	var minNull, maxNull *int64
	if err := pool.QueryRow(ctx, query, args...).Scan(&minNull, &maxNull, &count); err != nil {
		return 0, 0, 0, eris.Wrapf(err, "deckindex: game range for %s", format)
	}
	if minNull == nil || maxNull == nil {
		return 0, 0, 0, nil
	}
	return *minNull, *maxNull, count, nil
}

func (b *Builder) loadWindow(ctx context.Context, pool db.Pool, format string, era *model.Era, lo, hi int64, visit func(gameID int64, playerID, blueprint string)) error {
	query := `SELECT gdc.game_id, gdc.player_id, gdc.card_blueprint
	          FROM game_deck_cards gdc
	          JOIN game_analysis ga ON gdc.game_id = ga.game_id
	          WHERE ga.format_name = $1
	            AND gdc.card_role = 'draw_deck'
	            AND ga.game_id >= $2 AND ga.game_id < $3
	            AND ga.game_date >= $4`
	args := []any{format, lo, hi, era.StartsOn}
	if era.EndsOn != nil {
		query += ` AND ga.game_date <= $5`
		args = append(args, *era.EndsOn)
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "deckindex: load window [%d,%d) for %s", lo, hi, format)
	}
	defer rows.Close()

	for rows.Next() {
		var gameID int64
		var playerID, blueprint string
		if err := rows.Scan(&gameID, &playerID, &blueprint); err != nil {
			return eris.Wrap(err, "deckindex: scan deck row")
		}
		visit(gameID, playerID, blueprint)
	}
	return eris.Wrap(rows.Err(), "deckindex: window iterate")
}

// invert turns deck -> cards into card -> sorted deck ids.
func invert(decks map[int32]map[string]struct{}) map[string][]int32 {
	cardDecks := make(map[string][]int32)
	for deckID, cards := range decks {
		for card := range cards {
			cardDecks[card] = append(cardDecks[card], deckID)
		}
	}
	for card := range cardDecks {
		ids := cardDecks[card]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return cardDecks
}
