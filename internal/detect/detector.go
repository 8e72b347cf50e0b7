// Package detect clusters correlated cards into candidate archetype
// communities. Strategies are polymorphic over a shared graph input so new
// algorithms plug in without touching the pipeline.
package detect

import (
	"math/rand"
	"time"

	"github.com/rotisserie/eris"

	"github.com/PlayersCouncil/game-analytics/internal/graph"
)

// Strategy is one community-detection algorithm. Detect returns raw card
// sets; membership scoring and noise filtering happen in Finalize. Card sets
// may overlap for strategies that allow multi-membership.
type Strategy interface {
	Name() string
	Detect(g *graph.Graph) ([][]string, error)
}

// Params carries the tuning surface for every strategy. Each strategy reads
// only its own knobs.
type Params struct {
	Resolution float64 // louvain: higher = more, smaller communities
	Retention  float64 // labelprop: labels below this share are discarded; lower = more overlap
	Iterations int     // labelprop: propagation rounds
	Epsilon    float64 // overlap: merge threshold; higher = more merging
	CliqueSize int     // clique: k (3 looser, 5 tighter)

	// Anchor strategy inputs. Seeds holds the top played blueprints per
	// culture, most played first, resolved from the card catalog.
	AnchorSeeds             map[string][]string
	AnchorMinLift           float64 // minimum edge weight to join an anchor's community
	AnchorSimilarityCeiling float64 // skip anchors too correlated with one already chosen
	AnchorDegreeCeiling     int     // skip anchors too splashy to seed a community

	Seed int64 // stochastic strategies; 0 derives from the clock
}

// New maps a configured strategy name to its implementation.
func New(name string, p Params) (Strategy, error) {
	switch name {
	case "louvain":
		return &Louvain{Resolution: p.Resolution, Seed: p.Seed}, nil
	case "labelprop":
		return &LabelProp{Retention: p.Retention, Iterations: p.Iterations, Seed: p.Seed}, nil
	case "overlap":
		return &OverlapMerge{Epsilon: p.Epsilon}, nil
	case "clique":
		return &CliquePercolation{K: p.CliqueSize}, nil
	case "anchor":
		return &Anchor{
			Seeds:             p.AnchorSeeds,
			MinLift:           p.AnchorMinLift,
			SimilarityCeiling: p.AnchorSimilarityCeiling,
			DegreeCeiling:     p.AnchorDegreeCeiling,
		}, nil
	}
	return nil, eris.Errorf("detect: unknown strategy %q (want louvain, labelprop, overlap, clique or anchor)", name)
}

// newRand returns a seeded source for reproducible reruns. A zero seed
// derives from the clock.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
