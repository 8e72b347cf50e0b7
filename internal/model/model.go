// Package model defines the shared domain types for the analytics pipeline.
package model

import (
	"fmt"
	"time"
)

// Side identifies which faction a deck is built for. Correlation semantics
// assume deck construction within one side; the two are never mixed.
type Side string

const (
	SideFreePeoples Side = "free_peoples"
	SideShadow      Side = "shadow"
)

// Sides lists the sides every pipeline run iterates over.
var Sides = []Side{SideFreePeoples, SideShadow}

// ParseSide validates a side string from flags or config.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideFreePeoples, SideShadow:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown side %q (want free_peoples or shadow)", s)
}

// Era is a named time window scoping which games count. Eras are contiguous
// and non-overlapping; a window ends the day before the next era starts and
// the latest era is open-ended.
type Era struct {
	ID       int64
	Name     string
	StartsOn time.Time
	EndsOn   *time.Time // nil for the latest era
}

// Scope identifies one (format, side, era) unit of work. Every run performs
// a scoped delete-then-insert, so two runs must not mutate the same scope
// concurrently; disjoint scopes are safe to interleave.
type Scope struct {
	Format string
	Side   Side
	EraID  *int64
}

func (s Scope) String() string {
	if s.EraID == nil {
		return fmt.Sprintf("%s/%s", s.Format, s.Side)
	}
	return fmt.Sprintf("%s/%s/era:%d", s.Format, s.Side, *s.EraID)
}

// Correlation is one unordered card pair's co-occurrence statistics.
// CardA < CardB so each pair is stored exactly once.
type Correlation struct {
	CardA         string
	CardB         string
	TogetherCount int
	CardACount    int
	CardBCount    int
	TotalDecks    int
	Jaccard       float64
	Lift          float64
}

// MembershipType tags the provenance of a community membership row.
type MembershipType string

const (
	// MembershipCore is assigned by the latest detection run and replaced
	// wholesale on rerun.
	MembershipCore MembershipType = "core"
	// MembershipFlex is a card correlating strongly with a community's core
	// members without being assigned to it by detection.
	MembershipFlex MembershipType = "flex"
	// MembershipCustom is human-assigned and immune to detection reruns.
	MembershipCustom MembershipType = "custom"
)

// Community is a detected (or curated) card cluster.
type Community struct {
	ID              int64
	Scope           Scope
	CommunityIndex  int
	CardCount       int
	DeckCount       int
	AvgInternalLift float64
	ArchetypeName   *string
	IsValid         bool
	IsOrphanPool    bool
	Notes           *string
}

// Member is one card's membership in a community.
type Member struct {
	CommunityID     int64
	CardBlueprint   string
	MembershipScore float64
	IsCore          bool
	Type            MembershipType
}
