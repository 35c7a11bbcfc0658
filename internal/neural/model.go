package neural

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// weights is the exported-model artifact format: two logistic heads sharing
// one feature vector, one predicting success probability, the other an
// uncertainty estimate. No ML runtime exists anywhere in the retrieved
// corpus, so the "exported model" the spec describes is represented as the
// smallest thing that actually is a model: curated logistic-regression
// weights, loaded from JSON and evaluated with plain arithmetic.
type weights struct {
	// QuestionWeight/PrincipleWeight scale the corresponding embedding
	// dimensions before they are summed into the linear predictor; both
	// must have the same length as the embeddings passed to Score.
	QuestionWeight  []float64          `json:"question_weight"`
	PrincipleWeight []float64          `json:"principle_weight"`
	ContextWeight   map[string]float64 `json:"context_weight"` // keys: domain:<tag>, urgency, difficulty
	MuBias          float64            `json:"mu_bias"`
	SigmaBias       float64            `json:"sigma_bias"`
}

// LinearScorer evaluates a loaded weights artifact.
type LinearScorer struct {
	w weights
}

// LoadModel reads a weights JSON file from path.
func LoadModel(path string) (*LinearScorer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("neural: read model %s: %w", path, err)
	}
	var w weights
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("neural: decode model %s: %w", path, err)
	}
	return &LinearScorer{w: w}, nil
}

// Score builds the feature vector (question embedding, principle embedding,
// context bag) and evaluates two independent logistic heads, returning
// (success_prob, uncertainty), both clamped to [0, 1].
func (s *LinearScorer) Score(questionVec, principleVec []float32, ctxBag Context) (float64, float64, error) {
	if len(s.w.QuestionWeight) != len(questionVec) || len(s.w.PrincipleWeight) != len(principleVec) {
		return 0, 0, fmt.Errorf("%w: feature dimension mismatch", ErrUnavailable)
	}

	linear := s.w.MuBias
	for i, v := range questionVec {
		linear += s.w.QuestionWeight[i] * float64(v)
	}
	for i, v := range principleVec {
		linear += s.w.PrincipleWeight[i] * float64(v)
	}
	linear += s.w.ContextWeight["urgency"] * ctxBag.Urgency
	linear += s.w.ContextWeight["difficulty"] * ctxBag.Difficulty
	if ctxBag.Domain != "" {
		linear += s.w.ContextWeight["domain:"+ctxBag.Domain]
	}

	mu := sigmoid(linear)
	sigma := sigmoid(s.w.SigmaBias + math.Abs(linear)*-0.1) // higher |linear| => model is more confident => lower sigma

	return clamp01(mu), clamp01(sigma), nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
