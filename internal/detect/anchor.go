package detect

import (
	"sort"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// Anchor seeds one community per accepted anchor card and grows it from the
// anchor's strong neighbors. Seeds are grouped by culture; within a group
// they are tried in order and rejected when they look like splashy staples
// (too many graph neighbors) or duplicates of an already accepted anchor
// (lift to it at or above the similarity ceiling).
type Anchor struct {
	Seeds             map[string][]string
	MinLift           float64
	SimilarityCeiling float64
	DegreeCeiling     int
}

func (a *Anchor) Name() string { return "anchor" }

func (a *Anchor) Detect(g *graph.Graph) ([][]string, error) {
	accepted := make([]string, 0, len(a.Seeds))

	for _, culture := range sortedKeys(a.Seeds) {
		for _, seed := range a.Seeds[culture] {
			if !g.HasNode(seed) {
				continue
			}
			if a.DegreeCeiling > 0 && g.Degree(seed) > a.DegreeCeiling {
				continue
			}
			if a.redundant(g, seed, accepted) {
				continue
			}
			accepted = append(accepted, seed)
		}
	}

	var communities [][]string
	for _, anchor := range accepted {
		cards := []string{anchor}
		for nb, w := range g.Neighbors(anchor) {
			if w >= a.MinLift {
				cards = append(cards, nb)
			}
		}
		if len(cards) < 2 {
			continue
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

func (a *Anchor) redundant(g *graph.Graph, seed string, accepted []string) bool {
	if a.SimilarityCeiling <= 0 {
		return false
	}
	for _, other := range accepted {
		if w, ok := g.Weight(seed, other); ok && w >= a.SimilarityCeiling {
			return true
		}
	}
	return false
}
