package detect

import (
	"sort"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// Detected is a community after scoring, ready to persist.
type Detected struct {
	Cards           []string
	Scores          map[string]float64
	AvgInternalLift float64
}

// Finalize scores every member of every raw community and applies the size
// and score floors. A card's membership score is the fraction of other
// members it shares an edge with, so a fully connected member scores 1.0.
// When minScore prunes members, the survivors are rescored once against the
// trimmed set before the size floor is applied.
func Finalize(g *graph.Graph, communities [][]string, minSize int, minScore float64) []Detected {
	var out []Detected
	for _, cards := range communities {
		if len(cards) < minSize {
			continue
		}
		scores := scoreMembers(g, cards)
		if minScore > 0 {
			kept := cards[:0:0]
			for _, id := range cards {
				if scores[id] >= minScore {
					kept = append(kept, id)
				}
			}
			if len(kept) < len(cards) {
				cards = kept
				scores = scoreMembers(g, cards)
			}
		}
		if len(cards) < minSize {
			continue
		}
		sort.Strings(cards)
		out = append(out, Detected{
			Cards:           cards,
			Scores:          scores,
			AvgInternalLift: avgInternalLift(g, cards),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Cards) != len(out[j].Cards) {
			return len(out[i].Cards) > len(out[j].Cards)
		}
		return out[i].Cards[0] < out[j].Cards[0]
	})
	return out
}

func scoreMembers(g *graph.Graph, cards []string) map[string]float64 {
	scores := make(map[string]float64, len(cards))
	for _, id := range cards {
		if len(cards) < 2 {
			scores[id] = 0
			continue
		}
		edges := 0
		for _, other := range cards {
			if other == id {
				continue
			}
			if _, ok := g.Weight(id, other); ok {
				edges++
			}
		}
		scores[id] = float64(edges) / float64(len(cards)-1)
	}
	return scores
}

func avgInternalLift(g *graph.Graph, cards []string) float64 {
	var total float64
	var edges int
	for i := 0; i < len(cards); i++ {
		for j := i + 1; j < len(cards); j++ {
			if w, ok := g.Weight(cards[i], cards[j]); ok {
				total += w
				edges++
			}
		}
	}
	if edges == 0 {
		return 0
	}
	return total / float64(edges)
}
