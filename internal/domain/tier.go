package domain

// Tier is the broker pool tried for an attempt.
type Tier string

const (
	TierExternal    Tier = "EXTERNAL"
	TierInternal    Tier = "INTERNAL"
	TierPlantonista Tier = "PLANTONISTA"
)

// Rank orders tiers; escalation only ever moves to a higher rank.
func (t Tier) Rank() int {
	switch t {
	case TierExternal:
		return 1
	case TierInternal:
		return 2
	case TierPlantonista:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}
