package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() *Graph {
	g := New()
	g.AddEdge("a", "b", 2.0)
	g.AddEdge("b", "c", 3.0)
	g.AddEdge("a", "c", 1.5)
	return g
}

func TestAddEdge_Undirected(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", 2.5)

	w, ok := g.Weight("b", "a")
	require.True(t, ok)
	assert.Equal(t, 2.5, w)
	assert.Equal(t, 2, g.Order())
	assert.Equal(t, 1, g.Size())
}

func TestAddEdge_SelfLoopIgnored(t *testing.T) {
	g := New()
	g.AddEdge("a", "a", 1.0)
	assert.Equal(t, 0, g.Order())
}

func TestRemoveNode(t *testing.T) {
	g := triangle()
	g.RemoveNode("b")

	assert.False(t, g.HasNode("b"))
	assert.Equal(t, 0, g.Degree("b"))
	assert.Equal(t, 1, g.Size())
	_, ok := g.Weight("a", "b")
	assert.False(t, ok)
}

func TestStripHighDegree(t *testing.T) {
	// Hub connects to everything; spokes have degree 1-2.
	g := New()
	g.AddEdge("hub", "a", 1)
	g.AddEdge("hub", "b", 1)
	g.AddEdge("hub", "c", 1)
	g.AddEdge("a", "b", 1)

	removed := g.StripHighDegree(2)
	assert.Equal(t, []string{"hub"}, removed)
	assert.False(t, g.HasNode("hub"))

	// Disabled ceiling removes nothing.
	assert.Nil(t, triangle().StripHighDegree(0))
}

func TestConnectedComponents_LargestFirst(t *testing.T) {
	g := triangle()
	g.AddEdge("x", "y", 1.0)

	components := g.ConnectedComponents()
	require.Len(t, components, 2)
	assert.Equal(t, []string{"a", "b", "c"}, components[0])
	assert.Equal(t, []string{"x", "y"}, components[1])
	assert.False(t, g.IsConnected())
}

func TestLargestComponent(t *testing.T) {
	g := triangle()
	g.AddEdge("x", "y", 1.0)

	lc := g.LargestComponent()
	assert.Equal(t, 3, lc.Order())
	assert.True(t, lc.HasNode("a"))
	assert.False(t, lc.HasNode("x"))

	// Original graph is untouched.
	assert.Equal(t, 5, g.Order())
}

func TestSubgraph(t *testing.T) {
	g := triangle()
	sub := g.Subgraph([]string{"a", "b"})

	assert.Equal(t, 2, sub.Order())
	assert.Equal(t, 1, sub.Size())
	_, ok := sub.Weight("a", "c")
	assert.False(t, ok)
}

func TestKCliques_Triangles(t *testing.T) {
	g := triangle()
	g.AddEdge("c", "d", 1.0) // dangling edge, not in any triangle

	cliques := g.KCliques(3)
	require.Len(t, cliques, 1)
	assert.Equal(t, []string{"a", "b", "c"}, cliques[0])
}

func TestKCliques_K4(t *testing.T) {
	g := New()
	// Complete graph on 4 nodes has exactly one 4-clique and four 3-cliques.
	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"a", "d"}, {"b", "c"}, {"b", "d"}, {"c", "d"}} {
		g.AddEdge(pair[0], pair[1], 1.0)
	}
	assert.Len(t, g.KCliques(4), 1)
	assert.Len(t, g.KCliques(3), 4)
}

func TestWeightedDegree(t *testing.T) {
	g := triangle()
	assert.InDelta(t, 3.5, g.WeightedDegree("a"), 1e-9)
	assert.InDelta(t, 6.5, g.TotalWeight(), 1e-9)
}
