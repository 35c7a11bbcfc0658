package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// PersistDecision inserts a new decision record. Called once per decision_id;
// the caller (engine) is responsible for generating or validating the id
// before calling.
func (s *Store) PersistDecision(ctx context.Context, rec model.DecisionRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, question, domain, counsel_json, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Question, rec.Domain, rec.CounselJSON, string(model.OutcomePending), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: persist decision %s: %v", ErrUnavailable, rec.ID, err)
	}
	return nil
}

// LoadDecision fetches a decision record by id.
func (s *Store) LoadDecision(ctx context.Context, id string) (model.DecisionRecord, error) {
	var rec model.DecisionRecord
	var domain, notes sql.NullString
	var outcomeRecordedAt sql.NullTime
	var outcome string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, question, domain, counsel_json, outcome, outcome_notes, outcome_recorded_at, created_at
		FROM decisions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Question, &domain, &rec.CounselJSON, &outcome, &notes, &outcomeRecordedAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DecisionRecord{}, fmt.Errorf("%w: decision %s", ErrNotFound, id)
	}
	if err != nil {
		return model.DecisionRecord{}, fmt.Errorf("%w: load decision %s: %v", ErrUnavailable, id, err)
	}

	rec.Outcome = model.OutcomeStatus(outcome)
	if domain.Valid {
		rec.Domain = &domain.String
	}
	if notes.Valid {
		rec.OutcomeNotes = &notes.String
	}
	if outcomeRecordedAt.Valid {
		t := outcomeRecordedAt.Time
		rec.OutcomeRecordedAt = &t
	}
	return rec, nil
}

// SetOutcome marks a decision complete. Fails with ErrInvalidDecisionID if id
// is unknown; is a no-op (returns alreadySet=true, nil error) if the outcome
// was already recorded — spec.md §4.1/§4.8's idempotency requirement. The
// caller (internal/outcome) uses alreadySet to decide whether to re-apply
// posterior updates.
func (s *Store) SetOutcome(ctx context.Context, id string, success bool, notes *string) (alreadySet bool, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT outcome FROM decisions WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: decision %s", ErrInvalidDecisionID, id)
	}
	if err != nil {
		return false, fmt.Errorf("%w: check outcome for %s: %v", ErrUnavailable, id, err)
	}
	if model.OutcomeStatus(current) != model.OutcomePending {
		if notes != nil {
			if _, appendErr := s.db.ExecContext(ctx, `
				UPDATE decisions SET outcome_notes = COALESCE(outcome_notes, '') || ? WHERE id = ?
			`, "\n"+*notes, id); appendErr != nil {
				return true, fmt.Errorf("%w: append notes for %s: %v", ErrUnavailable, id, appendErr)
			}
		}
		return true, nil
	}

	outcome := model.OutcomeFailure
	if success {
		outcome = model.OutcomeSuccess
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE decisions SET outcome = ?, outcome_notes = ?, outcome_recorded_at = ? WHERE id = ?
	`, string(outcome), notes, now, id)
	if err != nil {
		return false, fmt.Errorf("%w: set outcome for %s: %v", ErrUnavailable, id, err)
	}
	return false, nil
}
