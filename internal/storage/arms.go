package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// GetArm reads the global arm for a principle, creating it with the uniform
// prior (alpha=1, beta=1, pulls=0) if it does not yet exist.
func (s *Store) GetArm(ctx context.Context, principleID string) (model.ArmPosterior, error) {
	var a model.ArmPosterior
	a.PrincipleID = principleID

	err := s.db.QueryRowContext(ctx, `
		SELECT alpha, beta, pulls, updated_at FROM thompson_arms WHERE principle_id = ?
	`, principleID).Scan(&a.Alpha, &a.Beta, &a.Pulls, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ArmPosterior{PrincipleID: principleID, Alpha: 1, Beta: 1, Pulls: 0, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return model.ArmPosterior{}, fmt.Errorf("%w: get arm %s: %v", ErrUnavailable, principleID, err)
	}
	return a, nil
}

// GetContextualArm reads the (principle_id, domain) arm, returning the
// uniform prior if absent.
func (s *Store) GetContextualArm(ctx context.Context, principleID, domain string) (model.ContextualArm, error) {
	var a model.ContextualArm
	a.PrincipleID = principleID
	a.Domain = domain

	err := s.db.QueryRowContext(ctx, `
		SELECT alpha, beta, pulls, updated_at FROM contextual_arms WHERE principle_id = ? AND domain = ?
	`, principleID, domain).Scan(&a.Alpha, &a.Beta, &a.Pulls, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ContextualArm{PrincipleID: principleID, Domain: domain, Alpha: 1, Beta: 1, Pulls: 0, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return model.ContextualArm{}, fmt.Errorf("%w: get contextual arm %s/%s: %v", ErrUnavailable, principleID, domain, err)
	}
	return a, nil
}

// ArmDelta is one asymmetric posterior update applied by the outcome
// updater: deltaAlpha is added on success, deltaBeta on failure (only one of
// the two is non-zero per call per spec.md §4.8).
type ArmDelta struct {
	PrincipleID string
	Domain      string // empty when updating only the global arm
	DeltaAlpha  float64
	DeltaBeta   float64
}

// ApplyArmDeltas updates the global arm (and, when Domain is set, the
// matching contextual arm) for each delta inside a single transaction — used
// by record_outcome so a single decision's deltas commit atomically.
// record_outcomes_batch uses applyArmDeltaTx directly, sharing one
// transaction with every other item in the batch (spec.md §4.8).
func (s *Store) ApplyArmDeltas(ctx context.Context, deltas []ArmDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin arm update transaction: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, d := range deltas {
		if err := applyArmDeltaTx(ctx, tx, d, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit arm update transaction: %v", ErrUnavailable, err)
	}
	return nil
}

// applyArmDeltaTx applies one ArmDelta against an already-open transaction.
// Factored out so record_outcomes_batch can fold every item's arm update
// into one shared transaction instead of one-per-item.
func applyArmDeltaTx(ctx context.Context, tx *sql.Tx, d ArmDelta, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO thompson_arms (principle_id, alpha, beta, pulls, updated_at)
		VALUES (?, 1.0 + ?, 1.0 + ?, 1, ?)
		ON CONFLICT(principle_id) DO UPDATE SET
			alpha = alpha + excluded.alpha - 1.0,
			beta = beta + excluded.beta - 1.0,
			pulls = pulls + 1,
			updated_at = excluded.updated_at
	`, d.PrincipleID, d.DeltaAlpha, d.DeltaBeta, now)
	if err != nil {
		return fmt.Errorf("%w: update global arm %s: %v", ErrUnavailable, d.PrincipleID, err)
	}

	if d.Domain == "" {
		return nil
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contextual_arms (principle_id, domain, alpha, beta, pulls, updated_at)
		VALUES (?, ?, 1.0 + ?, 1.0 + ?, 1, ?)
		ON CONFLICT(principle_id, domain) DO UPDATE SET
			alpha = alpha + excluded.alpha - 1.0,
			beta = beta + excluded.beta - 1.0,
			pulls = pulls + 1,
			updated_at = excluded.updated_at
	`, d.PrincipleID, d.Domain, d.DeltaAlpha, d.DeltaBeta, now)
	if err != nil {
		return fmt.Errorf("%w: update contextual arm %s/%s: %v", ErrUnavailable, d.PrincipleID, d.Domain, err)
	}
	return nil
}

// AllArms returns every global arm, used by wisdom_stats and sync_posteriors.
func (s *Store) AllArms(ctx context.Context) ([]model.ArmPosterior, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT principle_id, alpha, beta, pulls, updated_at FROM thompson_arms`)
	if err != nil {
		return nil, fmt.Errorf("%w: list arms: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.ArmPosterior
	for rows.Next() {
		var a model.ArmPosterior
		if err := rows.Scan(&a.PrincipleID, &a.Alpha, &a.Beta, &a.Pulls, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan arm: %v", ErrUnavailable, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
