// Package counsel implements the counsel assembler (C7): turns the
// retrieval pipeline's pro/con candidate slates into a CounselResponse with
// attributed positions, a Devil's Advocate challenge, and causal hints.
package counsel

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

// Assembler builds CounselResponses from a retrieval.Result.
type Assembler struct {
	store *storage.Store
}

// New builds an Assembler.
func New(store *storage.Store) *Assembler {
	return &Assembler{store: store}
}

// Assemble turns a retrieval result into a CounselResponse. decisionID is
// used verbatim if non-empty, otherwise a new UUID is generated.
func (a *Assembler) Assemble(ctx context.Context, decisionID string, result *retrieval.Result, depth model.Depth) (model.CounselResponse, error) {
	if decisionID == "" {
		decisionID = uuid.NewString()
	}

	resp := model.CounselResponse{DecisionID: decisionID, Partial: result.Partial}

	positions := make([]model.Position, 0, len(result.Pro)+len(result.Con))

	forPositions, err := a.buildPositions(ctx, result.Pro, model.StanceFor)
	if err != nil {
		return model.CounselResponse{}, err
	}
	positions = append(positions, forPositions...)

	againstPositions, err := a.buildPositions(ctx, result.Con, model.StanceAgainst)
	if err != nil {
		return model.CounselResponse{}, err
	}
	positions = append(positions, againstPositions...)

	if len(forPositions) == 0 && len(againstPositions) == 0 {
		resp.Partial = true
		resp.PartialReason = "no candidates survived retrieval"
	} else if len(forPositions) == 0 || len(againstPositions) == 0 {
		// Invariant relaxation: only depth=quick with a single total
		// candidate may have one side empty (spec.md §4.7).
		if !(depth == model.DepthQuick && len(positions) <= 1) {
			resp.Partial = true
			if resp.PartialReason == "" {
				resp.PartialReason = "fewer than one candidate on a required side"
			}
		}
	}

	resp.Positions = enforceNoDoubleSidedPrinciple(positions)

	slate := make([]retrieval.Candidate, 0, len(result.Pro)+len(result.Con))
	slate = append(slate, result.Pro...)
	slate = append(slate, result.Con...)
	resp.Challenge = buildChallenge(result.Template, slate)
	resp.CausalHints = buildCausalHints(resp.Positions)

	return resp, nil
}

func (a *Assembler) buildPositions(ctx context.Context, candidates []retrieval.Candidate, stance model.Stance) ([]model.Position, error) {
	seenThinkers := make(map[string]bool)
	out := make([]model.Position, 0, len(candidates))

	for _, c := range candidates {
		if seenThinkers[c.Principle.ThinkerID] {
			continue
		}

		thinker, err := a.store.GetThinker(ctx, c.Principle.ThinkerID)
		if err != nil {
			return nil, fmt.Errorf("counsel: load thinker %s: %w", c.Principle.ThinkerID, err)
		}

		cited := []string{c.Principle.ID}
		related, err := a.store.GetPrinciplesByThinker(ctx, c.Principle.ThinkerID)
		if err == nil {
			for _, r := range related {
				if r.ID != c.Principle.ID && sharesDomainTag(r, c.Principle) {
					cited = append(cited, r.ID)
				}
			}
		}

		out = append(out, model.Position{
			ThinkerID:       thinker.ID,
			ThinkerName:     thinker.Name,
			Stance:          stance,
			Argument:        leadIn(stance) + c.Principle.Description,
			PrinciplesCited: cited,
			Confidence:      c.Rho,
			FalsifiableIf:   c.Principle.Falsification,
		})
		seenThinkers[c.Principle.ThinkerID] = true
	}

	return out, nil
}

func leadIn(stance model.Stance) string {
	if stance == model.StanceFor {
		return ""
	}
	return "Caution: "
}

func sharesDomainTag(a, b model.Principle) bool {
	for _, t := range a.DomainTags {
		if b.HasTag(t) {
			return true
		}
	}
	return false
}

// enforceNoDoubleSidedPrinciple drops a later occurrence of a principle id
// that already appears as the primary citation of an earlier position on
// the opposite side (spec.md §4.7: "no principle appears on both sides").
func enforceNoDoubleSidedPrinciple(positions []model.Position) []model.Position {
	seen := make(map[string]bool)
	out := make([]model.Position, 0, len(positions))
	for _, pos := range positions {
		primary := pos.PrinciplesCited[0]
		if seen[primary] {
			continue
		}
		seen[primary] = true
		out = append(out, pos)
	}
	return out
}

func buildCausalHints(positions []model.Position) []string {
	var hints []string
	for _, pos := range positions {
		for _, pid := range pos.PrinciplesCited {
			hints = append(hints, fmt.Sprintf("%s cites %s for %s stance", pos.ThinkerName, pid, pos.Stance))
		}
	}
	return hints
}
