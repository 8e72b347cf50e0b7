package detect

import (
	"sort"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// OverlapMerge finds overlapping communities the DEMON way: each node's ego
// network is clustered locally, and local communities are merged globally
// whenever their overlap coefficient meets epsilon. A higher epsilon merges
// more aggressively, yielding fewer, larger communities.
type OverlapMerge struct {
	Epsilon float64
}

func (o *OverlapMerge) Name() string { return "overlap" }

func (o *OverlapMerge) Detect(g *graph.Graph) ([][]string, error) {
	if g.Order() == 0 {
		return nil, nil
	}
	epsilon := o.Epsilon
	if epsilon <= 0 || epsilon > 1 {
		epsilon = 0.25
	}

	var pool []map[string]struct{}

	for _, ego := range g.Nodes() {
		neighbors := make([]string, 0, g.Degree(ego))
		for n := range g.Neighbors(ego) {
			neighbors = append(neighbors, n)
		}
		if len(neighbors) == 0 {
			continue
		}
		sort.Strings(neighbors)

		// Ego-minus-ego network: the ego node itself is removed so its hub
		// edges don't glue unrelated neighborhoods together.
		egoNet := g.Subgraph(neighbors)

		for _, local := range localPropagation(egoNet) {
			community := make(map[string]struct{}, len(local)+1)
			for _, id := range local {
				community[id] = struct{}{}
			}
			community[ego] = struct{}{}
			pool = mergeInto(pool, community, epsilon)
		}
	}

	communities := make([][]string, 0, len(pool))
	for _, set := range pool {
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

// localPropagation runs a deterministic weighted label propagation on a
// small ego network and returns the resulting node groups.
func localPropagation(g *graph.Graph) [][]string {
	nodes := g.Nodes()
	label := make(map[string]string, len(nodes))
	for _, id := range nodes {
		label[id] = id
	}

	// Bounded rounds; ego networks are tiny so convergence is quick.
	for round := 0; round < 10; round++ {
		changed := false
		for _, id := range nodes {
			weightBy := make(map[string]float64)
			for neighbor, w := range g.Neighbors(id) {
				weightBy[label[neighbor]] += w
			}
			if len(weightBy) == 0 {
				continue
			}
			best, bestW := label[id], weightBy[label[id]]
			for _, l := range sortedKeys(weightBy) {
				if weightBy[l] > bestW {
					best, bestW = l, weightBy[l]
				}
			}
			if best != label[id] {
				label[id] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	byLabel := make(map[string][]string)
	for _, id := range nodes {
		byLabel[label[id]] = append(byLabel[label[id]], id)
	}

	groups := make([][]string, 0, len(byLabel))
	for _, l := range sortedKeys(byLabel) {
		group := byLabel[l]
		sort.Strings(group)
		groups = append(groups, group)
	}
	return groups
}

// mergeInto merges the candidate into the first pooled community whose
// overlap coefficient (shared / smaller size) meets epsilon, otherwise
// appends it.
func mergeInto(pool []map[string]struct{}, candidate map[string]struct{}, epsilon float64) []map[string]struct{} {
	for _, existing := range pool {
		if overlapCoefficient(existing, candidate) >= epsilon {
			for id := range candidate {
				existing[id] = struct{}{}
			}
			return pool
		}
	}
	return append(pool, candidate)
}

func overlapCoefficient(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}
	var shared int
	for id := range small {
		if _, ok := large[id]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
