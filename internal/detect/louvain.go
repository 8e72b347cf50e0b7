package detect

import (
	"math/rand"
	"sort"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// Louvain assigns each card to exactly one community by greedy modularity
// maximization over the lift-weighted graph. The resolution parameter trades
// community count against size: higher resolution yields more, smaller
// communities.
type Louvain struct {
	Resolution float64
	Seed       int64
}

func (l *Louvain) Name() string { return "louvain" }

func (l *Louvain) Detect(g *graph.Graph) ([][]string, error) {
	if g.Order() == 0 {
		return nil, nil
	}
	resolution := l.Resolution
	if resolution <= 0 {
		resolution = 1.0
	}
	rng := newRand(l.Seed)

	ids := g.Nodes()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	lg := &levelGraph{
		adj:  make([]map[int]float64, len(ids)),
		self: make([]float64, len(ids)),
	}
	for i, id := range ids {
		lg.adj[i] = make(map[int]float64, g.Degree(id))
		for neighbor, w := range g.Neighbors(id) {
			lg.adj[i][index[neighbor]] = w
		}
	}

	// members[i] holds the original cards collapsed into supernode i.
	members := make([][]string, len(ids))
	for i, id := range ids {
		members[i] = []string{id}
	}

	for {
		assignment, improved := localMove(lg, resolution, rng)
		if !improved {
			break
		}

		lg, members = aggregate(lg, members, assignment)
		if lg.order() == len(members) && lg.order() == 1 {
			break
		}
	}

	communities := make([][]string, 0, len(members))
	for _, cards := range members {
		sorted := append([]string(nil), cards...)
		sort.Strings(sorted)
		communities = append(communities, sorted)
	}
	return communities, nil
}

// levelGraph is one level of the Louvain hierarchy: supernodes with summed
// edge weights and self-loops holding collapsed internal weight.
type levelGraph struct {
	adj  []map[int]float64
	self []float64
}

func (lg *levelGraph) order() int { return len(lg.adj) }

// degree is the weighted degree including the self-loop counted twice,
// matching the standard modularity definition.
func (lg *levelGraph) degree(i int) float64 {
	sum := 2 * lg.self[i]
	for _, w := range lg.adj[i] {
		sum += w
	}
	return sum
}

func (lg *levelGraph) totalWeight() float64 {
	var sum float64
	for i := range lg.adj {
		sum += lg.degree(i)
	}
	return sum / 2
}

// localMove runs the Louvain local-moving phase and returns the node ->
// community assignment plus whether any node changed community.
func localMove(lg *levelGraph, resolution float64, rng *rand.Rand) ([]int, bool) {
	n := lg.order()
	comm := make([]int, n)
	sumTot := make([]float64, n)
	for i := 0; i < n; i++ {
		comm[i] = i
		sumTot[i] = lg.degree(i)
	}

	m2 := 2 * lg.totalWeight()
	if m2 == 0 {
		return comm, false
	}

	order := rng.Perm(n)
	improved := false

	for changed := true; changed; {
		changed = false
		for _, i := range order {
			ki := lg.degree(i)
			old := comm[i]
			sumTot[old] -= ki

			// Weight from i into each neighboring community.
			wTo := map[int]float64{old: 0}
			for j, w := range lg.adj[i] {
				wTo[comm[j]] += w
			}

			best, bestGain := old, wTo[old]-resolution*ki*sumTot[old]/m2
			// Deterministic candidate order so ties resolve stably.
			candidates := make([]int, 0, len(wTo))
			for c := range wTo {
				candidates = append(candidates, c)
			}
			sort.Ints(candidates)
			for _, c := range candidates {
				gain := wTo[c] - resolution*ki*sumTot[c]/m2
				if gain > bestGain {
					best, bestGain = c, gain
				}
			}

			comm[i] = best
			sumTot[best] += ki
			if best != old {
				changed = true
				improved = true
			}
		}
	}

	return comm, improved
}

// aggregate collapses each community into a supernode, summing edge weights
// and folding internal weight into self-loops.
func aggregate(lg *levelGraph, members [][]string, assignment []int) (*levelGraph, [][]string) {
	// Renumber non-empty communities densely.
	renumber := make(map[int]int)
	for _, c := range assignment {
		if _, ok := renumber[c]; !ok {
			renumber[c] = len(renumber)
		}
	}

	next := &levelGraph{
		adj:  make([]map[int]float64, len(renumber)),
		self: make([]float64, len(renumber)),
	}
	nextMembers := make([][]string, len(renumber))
	for i := range next.adj {
		next.adj[i] = make(map[int]float64)
	}

	for i, c := range assignment {
		nc := renumber[c]
		nextMembers[nc] = append(nextMembers[nc], members[i]...)
		next.self[nc] += lg.self[i]
		for j, w := range lg.adj[i] {
			njc := renumber[assignment[j]]
			if njc == nc {
				// Each internal edge visited from both ends.
				next.self[nc] += w / 2
				continue
			}
			next.adj[nc][njc] += w
		}
	}

	return next, nextMembers
}
