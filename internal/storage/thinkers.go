package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oraculum-ai/oraculum/internal/model"
)

// InsertThinker is idempotent by id (import time only).
func (s *Store) InsertThinker(ctx context.Context, t model.Thinker) error {
	if t.ID == "" || t.Name == "" {
		return fmt.Errorf("%w: thinker missing id or name", ErrCorpusInvariant)
	}
	if !model.ValidDomain(string(t.Domain)) {
		return fmt.Errorf("%w: thinker %q has unknown domain %q", ErrCorpusInvariant, t.ID, t.Domain)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thinkers (id, name, domain, background) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, domain=excluded.domain, background=excluded.background
	`, t.ID, t.Name, string(t.Domain), t.Background)
	if err != nil {
		return fmt.Errorf("%w: insert thinker %s: %v", ErrUnavailable, t.ID, err)
	}
	return nil
}

// InsertPrinciple is idempotent by id (import time only). The caller is
// responsible for enforcing the 2-6 principles-per-thinker invariant across
// a full import batch; CorpusInvariant here only guards per-row shape.
func (s *Store) InsertPrinciple(ctx context.Context, p model.Principle) error {
	if p.ID == "" || p.ThinkerID == "" {
		return fmt.Errorf("%w: principle missing id or thinker_id", ErrCorpusInvariant)
	}
	if p.Falsification == "" {
		return fmt.Errorf("%w: principle %q missing falsification", ErrCorpusInvariant, p.ID)
	}

	tagsJSON, err := json.Marshal(p.DomainTags)
	if err != nil {
		return fmt.Errorf("%w: marshal domain tags for %s: %v", ErrCorpusInvariant, p.ID, err)
	}

	stance := p.DefaultStance
	if stance == "" {
		stance = model.StanceNeutral
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO principles (id, thinker_id, name, description, falsification, anti_pattern, application_rule, default_stance, domain_tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thinker_id=excluded.thinker_id, name=excluded.name, description=excluded.description,
			falsification=excluded.falsification, anti_pattern=excluded.anti_pattern,
			application_rule=excluded.application_rule, default_stance=excluded.default_stance,
			domain_tags=excluded.domain_tags
	`, p.ID, p.ThinkerID, p.Name, p.Description, p.Falsification, p.AntiPattern, p.ApplicationRule, string(stance), string(tagsJSON))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: principle %q references unknown thinker %q", ErrCorpusInvariant, p.ID, p.ThinkerID)
		}
		return fmt.Errorf("%w: insert principle %s: %v", ErrUnavailable, p.ID, err)
	}
	return nil
}

// GetPrinciple loads one principle by id.
func (s *Store) GetPrinciple(ctx context.Context, id string) (model.Principle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, thinker_id, name, description, falsification, anti_pattern, application_rule, default_stance, domain_tags
		FROM principles WHERE id = ?
	`, id)
	return scanPrinciple(row)
}

// GetPrinciplesByThinker returns every principle owned by a thinker.
func (s *Store) GetPrinciplesByThinker(ctx context.Context, thinkerID string) ([]model.Principle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thinker_id, name, description, falsification, anti_pattern, application_rule, default_stance, domain_tags
		FROM principles WHERE thinker_id = ? ORDER BY id
	`, thinkerID)
	if err != nil {
		return nil, fmt.Errorf("%w: get principles by thinker %s: %v", ErrUnavailable, thinkerID, err)
	}
	defer rows.Close()

	var out []model.Principle
	for rows.Next() {
		p, err := scanPrinciple(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetThinker loads one thinker by id.
func (s *Store) GetThinker(ctx context.Context, id string) (model.Thinker, error) {
	var t model.Thinker
	var domain string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, domain, background FROM thinkers WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &domain, &t.Background)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Thinker{}, fmt.Errorf("%w: thinker %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Thinker{}, fmt.Errorf("%w: get thinker %s: %v", ErrUnavailable, id, err)
	}
	t.Domain = model.Domain(domain)
	return t, nil
}

// PrincipleCountByThinker counts principles per thinker, used to validate
// the 2-6 invariant after an import batch.
func (s *Store) PrincipleCountByThinker(ctx context.Context, thinkerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM principles WHERE thinker_id = ?`, thinkerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count principles for %s: %v", ErrUnavailable, thinkerID, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrinciple(row rowScanner) (model.Principle, error) {
	var p model.Principle
	var antiPattern, appRule sql.NullString
	var stance, tagsJSON string

	err := row.Scan(&p.ID, &p.ThinkerID, &p.Name, &p.Description, &p.Falsification, &antiPattern, &appRule, &stance, &tagsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Principle{}, fmt.Errorf("%w: principle", ErrNotFound)
	}
	if err != nil {
		return model.Principle{}, fmt.Errorf("%w: scan principle: %v", ErrUnavailable, err)
	}

	if antiPattern.Valid {
		p.AntiPattern = &antiPattern.String
	}
	if appRule.Valid {
		p.ApplicationRule = &appRule.String
	}
	p.DefaultStance = model.Stance(stance)
	if err := json.Unmarshal([]byte(tagsJSON), &p.DomainTags); err != nil {
		return model.Principle{}, fmt.Errorf("%w: unmarshal domain tags for %s: %v", ErrCorpusInvariant, p.ID, err)
	}
	return p, nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
