// Package sampler implements the arm sampler (C4): Thompson sampling over
// per-principle Beta posteriors, with an optional contextual override and a
// feel-good exploration bonus for under-pulled arms.
package sampler

import (
	"math"
	"math/rand"
)

// SampleBeta draws from Beta(alpha, beta) via the Gamma ratio identity:
// Beta(a, b) = X / (X + Y) where X ~ Gamma(a, 1), Y ~ Gamma(b, 1).
func SampleBeta(alpha, beta float64, rng *rand.Rand) float64 {
	if alpha <= 0 || beta <= 0 {
		return rng.Float64()
	}

	x := SampleGamma(alpha, 1.0, rng)
	y := SampleGamma(beta, 1.0, rng)

	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// SampleGamma draws from Gamma(alpha, beta) using the Marsaglia-Tsang method
// for alpha >= 1, falling back to the Gamma(a) = Gamma(a+1)*U^(1/a)
// transform for alpha < 1.
func SampleGamma(alpha, beta float64, rng *rand.Rand) float64 {
	if alpha >= 1.0 {
		d := alpha - 1.0/3.0
		c := 1.0 / math.Sqrt(9.0*d)

		for {
			x := rng.NormFloat64()
			v := 1.0 + c*x
			if v <= 0 {
				continue
			}
			v = v * v * v

			u := rng.Float64()
			if u < 1.0-0.0331*x*x*x*x {
				return d * v / beta
			}
			if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
				return d * v / beta
			}
		}
	}

	gamma := SampleGamma(alpha+1.0, beta, rng)
	u := rng.Float64()
	return gamma * math.Pow(u, 1.0/alpha)
}

// BetaMean returns alpha / (alpha + beta).
func BetaMean(alpha, beta float64) float64 {
	return alpha / (alpha + beta)
}

// BetaVariance returns alpha*beta / [(alpha+beta)^2 * (alpha+beta+1)].
func BetaVariance(alpha, beta float64) float64 {
	sum := alpha + beta
	return (alpha * beta) / (sum * sum * (sum + 1))
}
