// Package neural implements the optional neural scorer (C5): a small
// exported linear/logistic model producing a success probability and an
// uncertainty estimate for a (question, principle, context) feature vector.
package neural

import "errors"

// ErrUnavailable is returned by NoopScorer.Score and by Scorer
// implementations whose model failed to load.
var ErrUnavailable = errors.New("neural: no model loaded")

// Context is the small context bag the feature vector is built from.
type Context struct {
	Domain     string
	Urgency    float64 // 0..1
	Difficulty float64 // 0..1
}

// Scorer is the capability interface C6 calls. It must never be the only
// path to a selection score: when a Scorer is unavailable or returns an
// error, C6 falls back to the arm sampler's draw (spec.md §4.5).
type Scorer interface {
	// Score returns (success_prob, uncertainty), each in [0, 1].
	Score(questionVec, principleVec []float32, ctxBag Context) (mu, sigma float64, err error)
}

// Combined applies the configured exploration weight to a Scorer's output:
// mu + wExplore*sigma (spec.md §4.5, default wExplore=0.5).
func Combined(mu, sigma, wExplore float64) float64 {
	return mu + wExplore*sigma
}

// NoopScorer always reports unavailable, used when no model artifact is
// configured. It satisfies Scorer so C6 can depend on the interface
// unconditionally.
type NoopScorer struct{}

func (NoopScorer) Score(_, _ []float32, _ Context) (float64, float64, error) {
	return 0, 0, ErrUnavailable
}
