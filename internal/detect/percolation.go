package detect

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// CliquePercolation builds communities as connected unions of overlapping
// k-cliques: two cliques chain when they share k-1 nodes. k=3 gives loose
// communities, k=5 tight ones.
type CliquePercolation struct {
	K int
}

func (c *CliquePercolation) Name() string { return "clique" }

func (c *CliquePercolation) Detect(g *graph.Graph) ([][]string, error) {
	if c.K < 3 || c.K > 6 {
		return nil, eris.Errorf("detect: clique size %d out of range [3,6]", c.K)
	}
	if g.Order() == 0 {
		return nil, nil
	}

	cliques := g.KCliques(c.K)
	if len(cliques) == 0 {
		return nil, nil
	}

	// Two k-cliques are adjacent iff they share a (k-1)-subset. Index every
	// clique by each of its (k-1)-subsets and union cliques sharing one.
	uf := newUnionFind(len(cliques))
	bySubset := make(map[string]int)
	for i, clique := range cliques {
		for skip := range clique {
			key := subsetKey(clique, skip)
			if j, ok := bySubset[key]; ok {
				uf.union(i, j)
			} else {
				bySubset[key] = i
			}
		}
	}

	merged := make(map[int]map[string]struct{})
	for i, clique := range cliques {
		root := uf.find(i)
		if merged[root] == nil {
			merged[root] = make(map[string]struct{})
		}
		for _, id := range clique {
			merged[root][id] = struct{}{}
		}
	}

	communities := make([][]string, 0, len(merged))
	for _, set := range merged {
		cards := make([]string, 0, len(set))
		for id := range set {
			cards = append(cards, id)
		}
		sort.Strings(cards)
		communities = append(communities, cards)
	}
	sort.Slice(communities, func(i, j int) bool {
		if len(communities[i]) != len(communities[j]) {
			return len(communities[i]) > len(communities[j])
		}
		return communities[i][0] < communities[j][0]
	})
	return communities, nil
}

// subsetKey encodes the clique minus one member. Cliques come out of
// KCliques sorted, so the key is canonical.
func subsetKey(clique []string, skip int) string {
	var b strings.Builder
	for i, id := range clique {
		if i == skip {
			continue
		}
		b.WriteString(id)
		b.WriteByte(0)
	}
	return b.String()
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri != rj {
		u.parent[ri] = rj
	}
}
