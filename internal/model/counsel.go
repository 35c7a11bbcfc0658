package model

// Position is one FOR or AGAINST argument in a counsel response, attributed
// to a thinker and backed by one or more principles.
type Position struct {
	ThinkerID       string   `json:"thinker_id"`
	ThinkerName     string   `json:"thinker_name"`
	Stance          Stance   `json:"stance"` // for | against
	Argument        string   `json:"argument"`
	PrinciplesCited []string `json:"principles_cited"`
	Confidence      float64  `json:"confidence"` // rho of the arm used
	FalsifiableIf   string   `json:"falsifiable_if"`
}

// Challenge is the synthetic "Devil's Advocate" position enumerating missing
// considerations.
type Challenge struct {
	Thinker               string   `json:"thinker"` // always "Devil's Advocate"
	Argument              string   `json:"argument"`
	MissingConsiderations []string `json:"missing_considerations"`
	Confidence            float64  `json:"confidence"` // fixed at 0.95
}

// DevilsAdvocate is the fixed thinker label for the challenge slot.
const DevilsAdvocate = "Devil's Advocate"

// ChallengeConfidence is the fixed confidence value for the challenge slot.
const ChallengeConfidence = 0.95

// CounselResponse is the structured response to a counsel call.
type CounselResponse struct {
	DecisionID    string    `json:"decision_id"`
	Positions     []Position `json:"positions"`
	Challenge     Challenge `json:"challenge"`
	CausalHints   []string  `json:"causal_hints"`
	Partial       bool      `json:"partial"`
	PartialReason string    `json:"partial_reason,omitempty"`
}

// PrincipleIDs returns every principle id cited in the response's positions,
// de-duplicated but order-preserving. The challenge is not scanned.
func (c CounselResponse) PrincipleIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.Positions {
		for _, id := range p.PrinciplesCited {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
