package template

import (
	"strings"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// Match scores question against every catalogued template using weighted
// keyword coverage and returns the best match, or ok=false if the best score
// is below model.MatchFloor (spec.md §4.3). Ties are broken by declaration
// order: Catalogue is iterated in order and a later template only replaces
// the current best on a strictly higher score.
func Match(question string) (t model.Template, score float64, ok bool) {
	lower := strings.ToLower(question)

	best := -1.0
	bestIdx := -1
	for i, tpl := range Catalogue {
		s := coverage(lower, tpl.Triggers)
		if s > best {
			best = s
			bestIdx = i
		}
	}

	if bestIdx < 0 || best < model.MatchFloor {
		return model.Template{}, best, false
	}
	return Catalogue[bestIdx], best, true
}

// coverage computes the weighted fraction of a template's trigger weight
// matched in text: sum of weights for triggers present, divided by the sum
// of all declared weights.
func coverage(text string, triggers map[string]float64) float64 {
	var matched, total float64
	for phrase, weight := range triggers {
		total += weight
		if strings.Contains(text, phrase) {
			matched += weight
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}
