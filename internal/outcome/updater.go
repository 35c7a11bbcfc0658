// Package outcome implements the outcome updater (C8): applies asymmetric
// Bayesian posterior updates to every principle cited in a decision once its
// real-world result is reported back.
package outcome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

// SuccessDelta and FailureDelta are the asymmetric Beta-posterior updates:
// failures are punished twice as strongly as successes are rewarded
// (spec.md §4.8).
const (
	SuccessDelta = 0.05
	FailureDelta = 0.10
)

// Updater applies record_outcome and record_outcomes_batch.
type Updater struct {
	store *storage.Store
}

// New builds an Updater.
func New(store *storage.Store) *Updater {
	return &Updater{store: store}
}

// Result is the per-principle posterior returned after an outcome update.
type Result struct {
	PrincipleID string
	Rho         float64
}

// Outcome is one (decision, success) pair for record_outcomes_batch.
type Outcome struct {
	DecisionID string
	Success    bool
	Notes      *string
}

// RecordOutcome applies record_outcome for a single decision: loads the
// decision, extracts its cited principles and domain, applies the asymmetric
// delta to each principle's global (and, if known, contextual) arm, and
// marks the decision complete. A decision whose outcome is already set is a
// no-op that returns the current posteriors, not an error (spec.md §4.8).
func (u *Updater) RecordOutcome(ctx context.Context, decisionID string, success bool, notes *string) ([]Result, error) {
	rec, err := u.store.LoadDecision(ctx, decisionID)
	if err != nil {
		return nil, fmt.Errorf("outcome: load decision %s: %w", decisionID, err)
	}

	principleIDs, domain, err := extractCounsel(rec)
	if err != nil {
		return nil, fmt.Errorf("outcome: decode counsel for %s: %w", decisionID, err)
	}

	alreadySet, err := u.store.SetOutcome(ctx, decisionID, success, notes)
	if err != nil {
		return nil, fmt.Errorf("outcome: set outcome for %s: %w", decisionID, err)
	}
	if alreadySet {
		return u.currentPosteriors(ctx, principleIDs)
	}

	deltaAlpha, deltaBeta := 0.0, 0.0
	if success {
		deltaAlpha = SuccessDelta
	} else {
		deltaBeta = FailureDelta
	}

	deltas := make([]storage.ArmDelta, 0, len(principleIDs))
	for _, pid := range principleIDs {
		deltas = append(deltas, storage.ArmDelta{
			PrincipleID: pid,
			Domain:      domain,
			DeltaAlpha:  deltaAlpha,
			DeltaBeta:   deltaBeta,
		})
	}

	if err := u.store.ApplyArmDeltas(ctx, deltas); err != nil {
		return nil, fmt.Errorf("outcome: apply arm deltas for %s: %w", decisionID, err)
	}

	return u.currentPosteriors(ctx, principleIDs)
}

// RecordOutcomesBatch applies a vector of outcomes as a single transactional
// unit: every item's SetOutcome and arm-delta update commits together, or an
// error on any item rolls back the whole batch and no item's posteriors
// change (spec.md §4.8 "transactional application of a vector of outcomes;
// partial failure rolls back the batch").
func (u *Updater) RecordOutcomesBatch(ctx context.Context, outcomes []Outcome) (map[string][]Result, error) {
	if len(outcomes) == 0 {
		return map[string][]Result{}, nil
	}

	items := make([]storage.OutcomeApplication, 0, len(outcomes))
	principleIDsByDecision := make(map[string][]string, len(outcomes))

	for _, o := range outcomes {
		rec, err := u.store.LoadDecision(ctx, o.DecisionID)
		if err != nil {
			return nil, fmt.Errorf("outcome: batch item %s: load decision: %w", o.DecisionID, err)
		}
		principleIDs, domain, err := extractCounsel(rec)
		if err != nil {
			return nil, fmt.Errorf("outcome: batch item %s: decode counsel: %w", o.DecisionID, err)
		}

		deltaAlpha, deltaBeta := 0.0, 0.0
		if o.Success {
			deltaAlpha = SuccessDelta
		} else {
			deltaBeta = FailureDelta
		}

		items = append(items, storage.OutcomeApplication{
			DecisionID:   o.DecisionID,
			Success:      o.Success,
			Notes:        o.Notes,
			PrincipleIDs: principleIDs,
			Domain:       domain,
			DeltaAlpha:   deltaAlpha,
			DeltaBeta:    deltaBeta,
		})
		principleIDsByDecision[o.DecisionID] = principleIDs
	}

	if err := u.store.ApplyOutcomesBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("outcome: apply outcomes batch: %w", err)
	}

	results := make(map[string][]Result, len(outcomes))
	for _, o := range outcomes {
		r, err := u.currentPosteriors(ctx, principleIDsByDecision[o.DecisionID])
		if err != nil {
			return nil, fmt.Errorf("outcome: reload posteriors for %s: %w", o.DecisionID, err)
		}
		results[o.DecisionID] = r
	}
	return results, nil
}

func (u *Updater) currentPosteriors(ctx context.Context, principleIDs []string) ([]Result, error) {
	out := make([]Result, 0, len(principleIDs))
	for _, pid := range principleIDs {
		arm, err := u.store.GetArm(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("outcome: reload arm %s: %w", pid, err)
		}
		out = append(out, Result{PrincipleID: pid, Rho: arm.Rho()})
	}
	return out, nil
}

// extractCounsel decodes a decision's stored counsel JSON and returns the
// cited principle ids and domain string (empty if none).
func extractCounsel(rec model.DecisionRecord) ([]string, string, error) {
	var counsel model.CounselResponse
	if err := json.Unmarshal([]byte(rec.CounselJSON), &counsel); err != nil {
		return nil, "", err
	}
	domain := ""
	if rec.Domain != nil {
		domain = *rec.Domain
	}
	return counsel.PrincipleIDs(), domain, nil
}
