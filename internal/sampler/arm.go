package sampler

import (
	"context"
	"math"
	"math/rand"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// ArmSource is the subset of internal/storage.Store the sampler reads from.
// A narrow interface here keeps the sampler stateless and testable without a
// live database (spec.md §4.4: "stateless, reads arms from C1 per call").
type ArmSource interface {
	GetArm(ctx context.Context, principleID string) (model.ArmPosterior, error)
	GetContextualArm(ctx context.Context, principleID, domain string) (model.ContextualArm, error)
}

// MinContextualPulls is the trust threshold below which a contextual arm is
// ignored in favor of the global arm (spec.md §4.4).
const MinContextualPulls = model.MinContextualPulls

// Draw samples a selection score in [0, 1+bonus] for one principle, using the
// contextual arm when it is trusted (>= MinContextualPulls pulls) and the
// domain is non-empty, otherwise the global arm. A feel-good exploration
// bonus of 2*sqrt(ln(1000)/(pulls+1)) is added while the global arm has fewer
// than 100 pulls (spec.md §4.4).
func Draw(ctx context.Context, src ArmSource, principleID, domain string, rng *rand.Rand) (float64, error) {
	global, err := src.GetArm(ctx, principleID)
	if err != nil {
		return 0, err
	}

	alpha, beta, pulls := global.Alpha, global.Beta, global.Pulls

	if domain != "" {
		ctxArm, err := src.GetContextualArm(ctx, principleID, domain)
		if err != nil {
			return 0, err
		}
		if ctxArm.Pulls >= MinContextualPulls {
			alpha, beta = ctxArm.Alpha, ctxArm.Beta
		}
	}

	draw := SampleBeta(alpha, beta, rng)

	var bonus float64
	if global.Pulls < 100 {
		bonus = 2 * math.Sqrt(math.Log(1000)/float64(pulls+1))
		draw += bonus
	}

	if draw < 0 {
		draw = 0
	}
	if max := 1 + bonus; draw > max {
		draw = max
	}
	return draw, nil
}
