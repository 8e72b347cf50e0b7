package community

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

func flexGraph() *graph.Graph {
	g := graph.New()
	// Core triangle plus a strongly attached outsider and a weak one.
	g.AddEdge("c1", "c2", 3)
	g.AddEdge("c2", "c3", 3)
	g.AddEdge("c1", "c3", 3)
	g.AddEdge("strong", "c1", 4)
	g.AddEdge("strong", "c2", 4)
	g.AddEdge("strong", "c3", 4)
	g.AddEdge("weak", "c1", 1.1)
	g.AddEdge("weak", "c2", 1.1)
	g.AddEdge("weak", "c3", 1.1)
	return g
}

func TestFindFlex_QualifyingCard(t *testing.T) {
	coreSets := map[int64][]string{10: {"c1", "c2", "c3"}}
	out := FindFlex(flexGraph(), coreSets, FlexParams{MinConnections: 3, MinLift: 2.0})

	// "strong" averages lift 4 into the core set; "weak" averages 1.1 and
	// core members never flex into their own community.
	require.Len(t, out, 1)
	assert.Equal(t, int64(10), out[0].CommunityID)
	assert.Equal(t, "strong", out[0].Card)
	assert.InDelta(t, 0.8, out[0].Score, 1e-9)
}

func TestFindFlex_ScoreCapped(t *testing.T) {
	g := graph.New()
	g.AddEdge("c1", "c2", 10)
	g.AddEdge("x", "c1", 10)
	g.AddEdge("x", "c2", 10)

	out := FindFlex(g, map[int64][]string{10: {"c1", "c2"}}, FlexParams{MinConnections: 2, MinLift: 2.0})
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Score)
}

func TestFindFlex_SmallCoreSkipped(t *testing.T) {
	out := FindFlex(flexGraph(), map[int64][]string{10: {"c1", "c2"}}, FlexParams{MinConnections: 3, MinLift: 2.0})
	assert.Empty(t, out)
}

func TestFindFlex_TooFewEdges(t *testing.T) {
	g := graph.New()
	g.AddEdge("c1", "c2", 3)
	g.AddEdge("c2", "c3", 3)
	g.AddEdge("c1", "c3", 3)
	g.AddEdge("x", "c1", 9)

	out := FindFlex(g, map[int64][]string{10: {"c1", "c2", "c3"}}, FlexParams{MinConnections: 3, MinLift: 2.0})
	assert.Empty(t, out)
}

func TestInsertFlex_SkipsExistingMembership(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO card_community_members").
		WithArgs(int64(10), "strong", 0.8, string(model.MembershipFlex)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE card_communities SET card_count").
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	// Conflict with an existing row inserts nothing and skips the recount.
	mock.ExpectExec("INSERT INTO card_community_members").
		WithArgs(int64(10), "already-there", 0.5, string(model.MembershipFlex)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	candidates := []FlexCandidate{
		{CommunityID: 10, Card: "strong", Score: 0.8},
		{CommunityID: 10, Card: "already-there", Score: 0.5},
	}
	inserted, err := InsertFlex(context.Background(), mock, candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
