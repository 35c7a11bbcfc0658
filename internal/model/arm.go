package model

import "time"

// ArmPosterior is the global Beta(alpha, beta) posterior for one principle.
// Initial state is alpha=1, beta=1 (uniform prior).
type ArmPosterior struct {
	PrincipleID string    `json:"principle_id"`
	Alpha       float64   `json:"alpha"`
	Beta        float64   `json:"beta"`
	Pulls       int       `json:"pulls"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rho returns alpha/(alpha+beta), the posterior mean success rate.
func (a ArmPosterior) Rho() float64 {
	if a.Alpha+a.Beta == 0 {
		return 0.5
	}
	return a.Alpha / (a.Alpha + a.Beta)
}

// ContextualArm is a Beta(alpha, beta) posterior specialised to one
// (principle_id, domain) pair. A principle may have many contextual arms,
// one per observed domain.
type ContextualArm struct {
	PrincipleID string    `json:"principle_id"`
	Domain      string    `json:"domain"`
	Alpha       float64   `json:"alpha"`
	Beta        float64   `json:"beta"`
	Pulls       int       `json:"pulls"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rho returns alpha/(alpha+beta), the posterior mean success rate.
func (a ContextualArm) Rho() float64 {
	if a.Alpha+a.Beta == 0 {
		return 0.5
	}
	return a.Alpha / (a.Alpha + a.Beta)
}

// MinContextualPulls is the minimum pull count before a contextual arm is
// trusted over the global arm (spec.md §4.4).
const MinContextualPulls = 5
