package correlate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/deckindex"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// indexOf builds an Index from explicit deck-id lists.
func indexOf(totalDecks int, cardDecks map[string][]int32) *deckindex.Index {
	return &deckindex.Index{CardDecks: cardDecks, TotalDecks: totalDecks}
}

// seqIDs returns [0, n) as deck ids.
func seqIDs(n int) []int32 {
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i)
	}
	return ids
}

func collect(c *Computer, ix *deckindex.Index) []model.Correlation {
	var all []model.Correlation
	for batch := range c.Pairs(ix) {
		all = append(all, batch...)
	}
	return all
}

func TestPairs_NumericExample(t *testing.T) {
	// 100 decks, X in 60, Y in 50, both in 40.
	xDecks := seqIDs(60)          // decks 0-59
	yDecks := make([]int32, 0, 50) // decks 20-69: overlap 20-59 = 40 decks
	for i := 20; i < 70; i++ {
		yDecks = append(yDecks, int32(i))
	}

	ix := indexOf(100, map[string][]int32{"X": xDecks, "Y": yDecks})
	c := &Computer{MinAppearances: 1, MinLift: 0, BatchSize: 10}

	pairs := collect(c, ix)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, 40, p.TogetherCount)
	assert.Equal(t, 60, p.CardACount)
	assert.Equal(t, 50, p.CardBCount)
	assert.Equal(t, 100, p.TotalDecks)
	assert.InDelta(t, 1.3333, p.Lift, 0.0001)
	assert.InDelta(t, 0.5714, p.Jaccard, 0.0001)
	assert.GreaterOrEqual(t, p.Lift, 0.0)
	assert.LessOrEqual(t, p.Jaccard, 1.0)
}

// The min-lift filter applies to the exact lift, not the stored 4-decimal
// rounding: a true lift of 1.19995 must not sneak past min_lift 1.2 by
// rounding up to it.
func TestPairs_MinLiftFiltersUnroundedValue(t *testing.T) {
	// A in 206 decks, B in 100, together 19, 1301 decks total:
	// lift = 19*1301/(206*100) = 1.19995..., which rounds to 1.2000.
	aDecks := seqIDs(206) // decks 0-205
	bDecks := make([]int32, 0, 100)
	for i := 187; i < 287; i++ { // overlap 187-205 = 19 decks
		bDecks = append(bDecks, int32(i))
	}

	ix := indexOf(1301, map[string][]int32{"A": aDecks, "B": bDecks})
	c := &Computer{MinAppearances: 1, MinLift: 1.2, BatchSize: 10}

	assert.Empty(t, collect(c, ix))
}

func TestPairs_UnorderedPairStoredOnce(t *testing.T) {
	ix := indexOf(10, map[string][]int32{
		"zz": seqIDs(5),
		"aa": seqIDs(5),
	})
	c := &Computer{MinAppearances: 1, BatchSize: 10}

	pairs := collect(c, ix)
	require.Len(t, pairs, 1)
	assert.Equal(t, "aa", pairs[0].CardA)
	assert.Equal(t, "zz", pairs[0].CardB)
	assert.Less(t, pairs[0].CardA, pairs[0].CardB)
}

func TestPairs_ZeroIntersectionSkipped(t *testing.T) {
	ix := indexOf(10, map[string][]int32{
		"a": {0, 1, 2},
		"b": {5, 6, 7},
	})
	c := &Computer{MinAppearances: 1, BatchSize: 10}
	assert.Empty(t, collect(c, ix))
}

func TestPairs_MinAppearancesMonotonic(t *testing.T) {
	ix := indexOf(20, map[string][]int32{
		"a": seqIDs(10),
		"b": seqIDs(8),
		"c": seqIDs(3),
	})

	loose := collect(&Computer{MinAppearances: 2, BatchSize: 100}, ix)
	tight := collect(&Computer{MinAppearances: 5, BatchSize: 100}, ix)
	assert.LessOrEqual(t, len(tight), len(loose))
	// c falls below min_appearances=5, leaving only (a,b).
	require.Len(t, tight, 1)
	assert.Equal(t, "a", tight[0].CardA)
	assert.Equal(t, "b", tight[0].CardB)
}

func TestPairs_MinLiftMonotonic(t *testing.T) {
	ix := indexOf(100, map[string][]int32{
		"a": seqIDs(60),
		"b": seqIDs(50),
		"c": {90, 91, 92, 93, 94, 95, 96, 97, 98, 99},
	})

	loose := collect(&Computer{MinAppearances: 1, MinLift: 0, BatchSize: 100}, ix)
	tight := collect(&Computer{MinAppearances: 1, MinLift: 1.3, BatchSize: 100}, ix)
	assert.LessOrEqual(t, len(tight), len(loose))
}

func TestPairs_Idempotent(t *testing.T) {
	ix := indexOf(100, map[string][]int32{
		"a": seqIDs(60),
		"b": seqIDs(50),
		"c": seqIDs(40),
	})
	c := &Computer{MinAppearances: 10, MinLift: 1.0, BatchSize: 100}

	first := collect(c, ix)
	second := collect(c, ix)
	assert.Equal(t, first, second)
}

func TestPairs_TogetherBounded(t *testing.T) {
	ix := indexOf(50, map[string][]int32{
		"a": seqIDs(30),
		"b": seqIDs(20),
	})
	pairs := collect(&Computer{MinAppearances: 1, BatchSize: 10}, ix)
	require.Len(t, pairs, 1)
	assert.LessOrEqual(t, pairs[0].TogetherCount, min(pairs[0].CardACount, pairs[0].CardBCount))
}

func TestPairs_BatchSizing(t *testing.T) {
	// 5 cards all sharing decks -> C(5,2)=10 pairs, batch size 4 -> 4+4+2.
	cardDecks := make(map[string][]int32)
	for _, card := range []string{"a", "b", "c", "d", "e"} {
		cardDecks[card] = seqIDs(10)
	}
	ix := indexOf(10, cardDecks)
	c := &Computer{MinAppearances: 1, BatchSize: 4}

	var sizes []int
	for batch := range c.Pairs(ix) {
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
}

func TestPairs_FewerThanTwoCards(t *testing.T) {
	ix := indexOf(10, map[string][]int32{"only": seqIDs(10)})
	assert.Empty(t, collect(&Computer{MinAppearances: 1, BatchSize: 10}, ix))
}

func TestIntersectSorted(t *testing.T) {
	assert.Equal(t, 2, intersectSorted([]int32{1, 3, 5, 7}, []int32{2, 3, 4, 7}))
	assert.Equal(t, 0, intersectSorted([]int32{1, 2}, nil))
	assert.Equal(t, 3, intersectSorted([]int32{1, 2, 3}, []int32{1, 2, 3}))
}

func TestLift_ZeroDivisorsGuarded(t *testing.T) {
	assert.Equal(t, 0.0, lift(1, 2, 3, 0))
	assert.Equal(t, 0.0, lift(1, 0, 3, 10))
	assert.Equal(t, 0.0, jaccard(0, 0, 0))
}
