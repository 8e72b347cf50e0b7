package correlate

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlayersCouncil/game-analytics/internal/model"
)

func testScope() model.Scope {
	eraID := int64(3)
	return model.Scope{Format: "Expanded", Side: model.SideShadow, EraID: &eraID}
}

func batchesOf(batches ...[]model.Correlation) iter.Seq[[]model.Correlation] {
	return slices.Values(batches)
}

func TestReplace_DeleteThenCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scope := testScope()

	mock.ExpectExec("DELETE FROM card_correlations").
		WithArgs(scope.Format, string(scope.Side), scope.EraID).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"card_correlations"}, correlationColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"card_correlations"}, correlationColumns).WillReturnResult(1)

	batches := batchesOf(
		[]model.Correlation{
			{CardA: "1_1", CardB: "1_2", TogetherCount: 40, CardACount: 60, CardBCount: 50, TotalDecks: 100, Jaccard: 0.5714, Lift: 1.3333},
			{CardA: "1_1", CardB: "1_3", TogetherCount: 10, CardACount: 60, CardBCount: 20, TotalDecks: 100, Jaccard: 0.1429, Lift: 0.8333},
		},
		[]model.Correlation{
			{CardA: "1_2", CardB: "1_3", TogetherCount: 5, CardACount: 50, CardBCount: 20, TotalDecks: 100, Jaccard: 0.0769, Lift: 0.5},
		},
	)

	n, err := Replace(context.Background(), mock, scope, batches)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_DeleteFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scope := testScope()
	mock.ExpectExec("DELETE FROM card_correlations").
		WithArgs(scope.Format, string(scope.Side), scope.EraID).
		WillReturnError(errors.New("boom"))

	_, err = Replace(context.Background(), mock, scope, batchesOf())
	assert.Error(t, err)
}

func TestReplace_EmptySequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scope := testScope()
	mock.ExpectExec("DELETE FROM card_correlations").
		WithArgs(scope.Format, string(scope.Side), scope.EraID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	n, err := Replace(context.Background(), mock, scope, batchesOf())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadGraph(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scope := testScope()
	mock.ExpectQuery("SELECT card_a, card_b, lift, together_count").
		WithArgs(scope.Format, string(scope.Side), scope.EraID, 1.5, 50).
		WillReturnRows(pgxmock.NewRows([]string{"card_a", "card_b", "lift", "together_count"}).
			AddRow("1_1", "1_2", 2.5, 80).
			AddRow("1_2", "1_3", 1.9, 60))

	g, err := LoadGraph(context.Background(), mock, scope, 1.5, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Order())
	assert.Equal(t, 2, g.Size())

	w, ok := g.Weight("1_1", "1_2")
	require.True(t, ok)
	assert.Equal(t, 2.5, w)
	assert.NoError(t, mock.ExpectationsWereMet())
}
