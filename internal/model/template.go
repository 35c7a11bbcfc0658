package model

// Template is a pre-declared decision archetype with trigger keywords,
// boosted principles, and declared blind spots.
type Template struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Triggers    map[string]float64 `json:"triggers"`     // keyword (lowercase) -> weight
	Boost       []string           `json:"boost"`        // principle ids injected as candidates
	BlindSpots  []string           `json:"blind_spots"`  // missing-consideration seeds
	Synergies   [][2]string        `json:"synergies"`    // principle id pairs that reinforce each other
	Tensions    [][2]string        `json:"tensions"`     // principle id pairs that conflict
	AntiPattern []string           `json:"anti_pattern"` // principle ids excluded as anti-patterns of this template
}

// MatchFloor is the minimum weighted keyword coverage score required for a
// template to be considered matched (spec.md §4.3).
const MatchFloor = 0.25
