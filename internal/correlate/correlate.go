// Package correlate computes pairwise card co-occurrence statistics from a
// deck index and persists them per (format, side, era) scope.
package correlate

import (
	"iter"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/deckindex"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

// Computer produces correlation pairs from an inverted deck index.
type Computer struct {
	MinAppearances int
	MinLift        float64
	BatchSize      int
}

// Pairs returns a lazy, finite, single-use sequence of fixed-size batches.
// The full pair space is O(C^2) after filtering to C surviving cards and is
// never materialized; consumers persist each batch as it arrives.
func (c *Computer) Pairs(ix *deckindex.Index) iter.Seq[[]model.Correlation] {
	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = 10000
	}

	// Filter to cards meeting the appearance threshold. This is the primary
	// lever controlling pair-count tractability.
	cards := make([]string, 0, len(ix.CardDecks))
	for card, decks := range ix.CardDecks {
		if len(decks) >= c.MinAppearances {
			cards = append(cards, card)
		}
	}
	sort.Strings(cards)

	log := zap.L().With(zap.String("component", "correlate"))
	log.Info("cards surviving appearance filter",
		zap.Int("cards", len(cards)),
		zap.Int("min_appearances", c.MinAppearances),
	)

	return func(yield func([]model.Correlation) bool) {
		if len(cards) < 2 {
			return
		}

		batch := make([]model.Correlation, 0, batchSize)
		var found int

		for i, cardA := range cards {
			decksA := ix.CardDecks[cardA]
			for _, cardB := range cards[i+1:] {
				decksB := ix.CardDecks[cardB]

				together := intersectSorted(decksA, decksB)
				if together == 0 {
					continue
				}

				// Filter on the exact lift; rounding is for storage only.
				rawLift := lift(together, len(decksA), len(decksB), ix.TotalDecks)
				if rawLift < c.MinLift {
					continue
				}

				pair := model.Correlation{
					CardA:         cardA,
					CardB:         cardB,
					TogetherCount: together,
					CardACount:    len(decksA),
					CardBCount:    len(decksB),
					TotalDecks:    ix.TotalDecks,
					Jaccard:       round4(jaccard(together, len(decksA), len(decksB))),
					Lift:          round4(rawLift),
				}

				batch = append(batch, pair)
				found++
				if len(batch) >= batchSize {
					if !yield(batch) {
						return
					}
					batch = make([]model.Correlation, 0, batchSize)
				}
			}
		}

		if len(batch) > 0 {
			yield(batch)
		}
		log.Info("correlation pass complete",
			zap.Int("pairs", found),
			zap.Float64("min_lift", c.MinLift),
		)
	}
}

// jaccard is intersection over union of the two cards' deck sets.
func jaccard(together, countA, countB int) float64 {
	union := countA + countB - together
	if union <= 0 {
		return 0
	}
	return float64(together) / float64(union)
}

// lift is the ratio of observed to expected co-occurrence under
// independence; >1 indicates positive correlation.
func lift(together, countA, countB, totalDecks int) float64 {
	if totalDecks == 0 {
		return 0
	}
	expected := float64(countA) * float64(countB) / float64(totalDecks)
	if expected == 0 {
		return 0
	}
	return float64(together) / expected
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// intersectSorted counts common elements of two ascending slices.
func intersectSorted(a, b []int32) int {
	var n, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}
