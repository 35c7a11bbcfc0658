package counsel

import (
	"strings"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
)

// fallbackConsiderations is used when neither template blind spots nor
// under-represented domain tags yield at least 3 items (spec.md §4.7).
var fallbackConsiderations = []string{"rollback plan", "team capacity", "timeline constraints"}

// buildChallenge computes the Devil's Advocate position: 3-5 missing
// considerations drawn first from the matched template's blind spots, then
// from domain tags under-represented in the chosen slate, then from the
// fixed fallback list.
func buildChallenge(tpl *model.Template, slate []retrieval.Candidate) model.Challenge {
	considerations := missingConsiderations(tpl, slate)

	return model.Challenge{
		Thinker:               model.DevilsAdvocate,
		Argument:              formatChallengeArgument(considerations),
		MissingConsiderations: considerations,
		Confidence:            model.ChallengeConfidence,
	}
}

func missingConsiderations(tpl *model.Template, slate []retrieval.Candidate) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(items []string) {
		for _, item := range items {
			if len(out) >= 5 {
				return
			}
			if seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}

	if tpl != nil {
		add(tpl.BlindSpots)
	}

	if len(out) < 3 {
		add(underRepresentedTags(slate))
	}

	if len(out) < 3 {
		add(fallbackConsiderations)
	}

	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// underRepresentedTags surfaces domain tags backed by at most one chosen
// principle, as a proxy for thin coverage the slate did not explore deeply.
func underRepresentedTags(slate []retrieval.Candidate) []string {
	counts := make(map[string]int)
	var order []string
	for _, c := range slate {
		for _, tag := range c.Principle.DomainTags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	var out []string
	for _, tag := range order {
		if counts[tag] <= 1 {
			out = append(out, tag)
		}
	}
	return out
}

func formatChallengeArgument(considerations []string) string {
	return "Before committing, consider: " + strings.Join(considerations, "; ") + "."
}
