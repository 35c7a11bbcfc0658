package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// PersistProvenance stores a decision's provenance link. Called once,
// atomically alongside PersistDecision by the engine (spec.md §5's
// persist -> sign -> return atomicity note is satisfied by the caller doing
// both within the same request before returning, not by a shared SQL
// transaction — the signature itself cannot be computed until the content
// hash is known, which depends on the just-persisted record).
func (s *Store) PersistProvenance(ctx context.Context, link model.ProvenanceLink) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provenance (decision_id, agent_pubkey, content_hash, previous_hash, signature)
		VALUES (?, ?, ?, ?, ?)
	`, link.DecisionID, link.AgentPubkey, link.ContentHash, link.PreviousHash, link.Signature)
	if err != nil {
		return fmt.Errorf("%w: persist provenance for %s: %v", ErrUnavailable, link.DecisionID, err)
	}
	return nil
}

// LoadProvenance fetches the provenance link for one decision.
func (s *Store) LoadProvenance(ctx context.Context, decisionID string) (model.ProvenanceLink, error) {
	var link model.ProvenanceLink
	link.DecisionID = decisionID
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_pubkey, content_hash, previous_hash, signature FROM provenance WHERE decision_id = ?
	`, decisionID).Scan(&link.AgentPubkey, &link.ContentHash, &link.PreviousHash, &link.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProvenanceLink{}, fmt.Errorf("%w: provenance for %s", ErrNotFound, decisionID)
	}
	if err != nil {
		return model.ProvenanceLink{}, fmt.Errorf("%w: load provenance for %s: %v", ErrUnavailable, decisionID, err)
	}
	return link, nil
}

// TipHash returns the content_hash of the chronologically most recent
// decision (by created_at, ties broken by decision_id per spec.md §9), or
// model.GenesisHash if no decisions exist yet.
func (s *Store) TipHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT pr.content_hash
		FROM provenance pr
		JOIN decisions d ON d.id = pr.decision_id
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT 1
	`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: tip hash: %v", ErrUnavailable, err)
	}
	return hash, nil
}

// PredecessorHash returns the content_hash of the record immediately before
// decisionID in created_at order (ties broken by decision_id), or
// model.GenesisHash if decisionID is the first record.
func (s *Store) PredecessorHash(ctx context.Context, decisionID string) (string, error) {
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM decisions WHERE id = ?`, decisionID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: decision %s", ErrNotFound, decisionID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: predecessor lookup for %s: %v", ErrUnavailable, decisionID, err)
	}

	var hash string
	err = s.db.QueryRowContext(ctx, `
		SELECT pr.content_hash
		FROM provenance pr
		JOIN decisions d ON d.id = pr.decision_id
		WHERE (d.created_at < ?) OR (d.created_at = ? AND d.id < ?)
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT 1
	`, createdAt.Time, createdAt.Time, decisionID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: predecessor hash for %s: %v", ErrUnavailable, decisionID, err)
	}
	return hash, nil
}

// AllContentHashesSorted returns every content_hash in the store, sorted
// lexicographically, for BuildMerkleRoot batch-proof construction.
func (s *Store) AllContentHashesSorted(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_hash FROM provenance ORDER BY content_hash ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list content hashes: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("%w: scan content hash: %v", ErrUnavailable, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
