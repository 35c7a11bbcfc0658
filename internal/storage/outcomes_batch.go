package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// OutcomeApplication is one decision's outcome and the principle arms it
// touches, prepared by internal/outcome before calling ApplyOutcomesBatch.
// DeltaAlpha/DeltaBeta are the asymmetric posterior deltas internal/outcome
// already computes from success/failure (storage has no opinion on their
// magnitude) and are applied to every id in PrincipleIDs.
type OutcomeApplication struct {
	DecisionID   string
	Success      bool
	Notes        *string
	PrincipleIDs []string
	Domain       string // empty when the decision carried no domain
	DeltaAlpha   float64
	DeltaBeta    float64
}

// ApplyOutcomesBatch applies every item's SetOutcome + arm-delta update
// inside a single transaction: if any item fails — most commonly an unknown
// decision id — the whole batch rolls back and no item's posteriors change,
// satisfying spec.md §4.8's "transactional application of a vector of
// outcomes; partial failure rolls back the batch" invariant.
func (s *Store) ApplyOutcomesBatch(ctx context.Context, items []OutcomeApplication) error {
	if len(items) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin outcomes batch transaction: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, item := range items {
		alreadySet, err := setOutcomeTx(ctx, tx, item.DecisionID, item.Success, item.Notes, now)
		if err != nil {
			return err
		}
		if alreadySet {
			continue
		}

		for _, pid := range item.PrincipleIDs {
			delta := ArmDelta{PrincipleID: pid, Domain: item.Domain, DeltaAlpha: item.DeltaAlpha, DeltaBeta: item.DeltaBeta}
			if err := applyArmDeltaTx(ctx, tx, delta, now); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit outcomes batch transaction: %v", ErrUnavailable, err)
	}
	return nil
}

// setOutcomeTx is SetOutcome's logic run against an already-open transaction,
// shared across every item in a record_outcomes_batch call.
func setOutcomeTx(ctx context.Context, tx *sql.Tx, id string, success bool, notes *string, now time.Time) (alreadySet bool, err error) {
	var current string
	err = tx.QueryRowContext(ctx, `SELECT outcome FROM decisions WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: decision %s", ErrInvalidDecisionID, id)
	}
	if err != nil {
		return false, fmt.Errorf("%w: check outcome for %s: %v", ErrUnavailable, id, err)
	}

	if model.OutcomeStatus(current) != model.OutcomePending {
		if notes != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE decisions SET outcome_notes = COALESCE(outcome_notes, '') || ? WHERE id = ?
			`, "\n"+*notes, id); err != nil {
				return true, fmt.Errorf("%w: append notes for %s: %v", ErrUnavailable, id, err)
			}
		}
		return true, nil
	}

	outcome := model.OutcomeFailure
	if success {
		outcome = model.OutcomeSuccess
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE decisions SET outcome = ?, outcome_notes = ?, outcome_recorded_at = ? WHERE id = ?
	`, string(outcome), notes, now, id); err != nil {
		return false, fmt.Errorf("%w: set outcome for %s: %v", ErrUnavailable, id, err)
	}
	return false, nil
}
