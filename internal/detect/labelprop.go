package detect

import (
	"sort"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// LabelProp finds overlapping communities via iterative weighted multi-label
// propagation. Each node holds a set of labels with belonging coefficients;
// each round a node adopts its neighbors' labels in proportion to edge
// weight and discards labels whose share falls below the retention
// threshold. A lower threshold lets nodes keep more labels, producing more
// overlap.
type LabelProp struct {
	Retention  float64
	Iterations int
	Seed       int64
}

func (l *LabelProp) Name() string { return "labelprop" }

func (l *LabelProp) Detect(g *graph.Graph) ([][]string, error) {
	if g.Order() == 0 {
		return nil, nil
	}
	retention := l.Retention
	if retention <= 0 || retention > 1 {
		retention = 0.3
	}
	iterations := l.Iterations
	if iterations <= 0 {
		iterations = 20
	}
	rng := newRand(l.Seed)

	nodes := g.Nodes()

	// Every node starts with only its own label.
	labels := make(map[string]map[string]float64, len(nodes))
	for _, id := range nodes {
		labels[id] = map[string]float64{id: 1}
	}

	for round := 0; round < iterations; round++ {
		order := make([]string, len(nodes))
		for i, p := range rng.Perm(len(nodes)) {
			order[i] = nodes[p]
		}

		changed := false
		for _, id := range order {
			next := propagate(g, labels, id, retention)
			if !sameLabels(labels[id], next) {
				changed = true
			}
			labels[id] = next
		}
		if !changed {
			break
		}
	}

	return groupByLabel(nodes, labels), nil
}

// propagate aggregates neighbor labels weighted by edge weight, normalizes,
// and keeps labels meeting the retention threshold. Isolated nodes keep
// their current labels.
func propagate(g *graph.Graph, labels map[string]map[string]float64, id string, retention float64) map[string]float64 {
	incoming := make(map[string]float64)
	var total float64
	for neighbor, w := range g.Neighbors(id) {
		for label, coeff := range labels[neighbor] {
			incoming[label] += w * coeff
			total += w * coeff
		}
	}
	if total == 0 {
		return labels[id]
	}

	kept := make(map[string]float64)
	var keptTotal float64
	for label, sum := range incoming {
		share := sum / total
		if share >= retention {
			kept[label] = share
			keptTotal += share
		}
	}

	// Nothing survived the threshold: keep only the strongest label, with a
	// deterministic tie-break.
	if len(kept) == 0 {
		best, bestSum := "", -1.0
		for _, label := range sortedKeys(incoming) {
			if incoming[label] > bestSum {
				best, bestSum = label, incoming[label]
			}
		}
		return map[string]float64{best: 1}
	}

	for label := range kept {
		kept[label] /= keptTotal
	}
	return kept
}

func sameLabels(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for label := range a {
		if _, ok := b[label]; !ok {
			return false
		}
	}
	return true
}

// groupByLabel collects nodes per surviving label, dropping duplicate sets.
func groupByLabel(nodes []string, labels map[string]map[string]float64) [][]string {
	byLabel := make(map[string][]string)
	for _, id := range nodes {
		for label := range labels[id] {
			byLabel[label] = append(byLabel[label], id)
		}
	}

	seen := make(map[string]struct{}, len(byLabel))
	var communities [][]string
	for _, label := range sortedKeys(byLabel) {
		cards := byLabel[label]
		sort.Strings(cards)
		key := fingerprint(cards)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		communities = append(communities, cards)
	}
	return communities
}

func fingerprint(sorted []string) string {
	var key string
	for _, s := range sorted {
		key += s + "\x00"
	}
	return key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
