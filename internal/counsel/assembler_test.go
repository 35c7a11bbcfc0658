package counsel_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraculum-ai/oraculum/internal/counsel"
	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "counsel-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedThinkerAndPrinciples(t *testing.T, store *storage.Store, thinkerID string, principles ...model.Principle) {
	t.Helper()
	require.NoError(t, store.InsertThinker(context.Background(), model.Thinker{
		ID: thinkerID, Name: thinkerID + "-name", Domain: model.DomainSoftware, Background: "bg",
	}))
	for _, p := range principles {
		p.ThinkerID = thinkerID
		if p.Falsification == "" {
			p.Falsification = "falsifiable"
		}
		require.NoError(t, store.InsertPrinciple(context.Background(), p))
	}
}

func TestAssembleBuildsPositionsForBothSides(t *testing.T) {
	store := newTestStore(t)
	seedThinkerAndPrinciples(t, store, "taleb", model.Principle{ID: "p-pro", Description: "favor optionality"})
	seedThinkerAndPrinciples(t, store, "deming", model.Principle{ID: "p-con", Description: "favor process control"})

	result := &retrieval.Result{
		Pro: []retrieval.Candidate{{Principle: mustGet(t, store, "p-pro"), Rho: 0.7}},
		Con: []retrieval.Candidate{{Principle: mustGet(t, store, "p-con"), Rho: 0.6}},
	}

	resp, err := counsel.New(store).Assemble(context.Background(), "d1", result, model.DepthStandard)
	require.NoError(t, err)
	assert.Equal(t, "d1", resp.DecisionID)
	assert.False(t, resp.Partial)
	require.Len(t, resp.Positions, 2)
	assert.Equal(t, model.StanceFor, resp.Positions[0].Stance)
	assert.Equal(t, model.StanceAgainst, resp.Positions[1].Stance)
	assert.Contains(t, resp.Positions[1].Argument, "Caution:")
	assert.NotEmpty(t, resp.Challenge.MissingConsiderations)
	assert.NotEmpty(t, resp.CausalHints)
}

func TestAssembleGeneratesDecisionIDWhenEmpty(t *testing.T) {
	store := newTestStore(t)
	seedThinkerAndPrinciples(t, store, "taleb", model.Principle{ID: "p-pro", Description: "favor optionality"})

	result := &retrieval.Result{Pro: []retrieval.Candidate{{Principle: mustGet(t, store, "p-pro"), Rho: 0.5}}}
	resp, err := counsel.New(store).Assemble(context.Background(), "", result, model.DepthQuick)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DecisionID)
}

func TestAssembleOneEmptySideIsPartialAtStandardDepth(t *testing.T) {
	store := newTestStore(t)
	seedThinkerAndPrinciples(t, store, "taleb", model.Principle{ID: "p-pro", Description: "favor optionality"})

	result := &retrieval.Result{Pro: []retrieval.Candidate{{Principle: mustGet(t, store, "p-pro"), Rho: 0.5}}}
	resp, err := counsel.New(store).Assemble(context.Background(), "d1", result, model.DepthStandard)
	require.NoError(t, err)
	assert.True(t, resp.Partial)
}

func TestAssembleQuickDepthSingleCandidateIsNotPartial(t *testing.T) {
	store := newTestStore(t)
	seedThinkerAndPrinciples(t, store, "taleb", model.Principle{ID: "p-pro", Description: "favor optionality"})

	result := &retrieval.Result{Pro: []retrieval.Candidate{{Principle: mustGet(t, store, "p-pro"), Rho: 0.5}}}
	resp, err := counsel.New(store).Assemble(context.Background(), "d1", result, model.DepthQuick)
	require.NoError(t, err)
	assert.False(t, resp.Partial)
}

func TestAssembleNoCandidatesIsPartialWithReason(t *testing.T) {
	store := newTestStore(t)
	resp, err := counsel.New(store).Assemble(context.Background(), "d1", &retrieval.Result{}, model.DepthStandard)
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.Equal(t, "no candidates survived retrieval", resp.PartialReason)
	assert.Empty(t, resp.Positions)
}

func TestAssembleDedupesRepeatedThinkerOnSameSide(t *testing.T) {
	store := newTestStore(t)
	seedThinkerAndPrinciples(t, store, "taleb",
		model.Principle{ID: "p1", Description: "one"},
		model.Principle{ID: "p2", Description: "two"},
	)

	result := &retrieval.Result{Pro: []retrieval.Candidate{
		{Principle: mustGet(t, store, "p1"), Rho: 0.7},
		{Principle: mustGet(t, store, "p2"), Rho: 0.6},
	}}
	resp, err := counsel.New(store).Assemble(context.Background(), "d1", result, model.DepthStandard)
	require.NoError(t, err)
	assert.Len(t, resp.Positions, 1, "only the first candidate per thinker becomes a position")
}

func TestAssembleNeverCitesSamePrincipleOnBothSides(t *testing.T) {
	store := newTestStore(t)
	seedThinkerAndPrinciples(t, store, "taleb", model.Principle{ID: "p-shared", Description: "shared"})
	seedThinkerAndPrinciples(t, store, "deming", model.Principle{ID: "p-other", Description: "other"})

	shared := mustGet(t, store, "p-shared")
	result := &retrieval.Result{
		Pro: []retrieval.Candidate{{Principle: shared, Rho: 0.7}},
		Con: []retrieval.Candidate{{Principle: shared, Rho: 0.6}},
	}
	resp, err := counsel.New(store).Assemble(context.Background(), "d1", result, model.DepthStandard)
	require.NoError(t, err)

	seenPrimary := make(map[string]int)
	for _, pos := range resp.Positions {
		seenPrimary[pos.PrinciplesCited[0]]++
	}
	assert.Equal(t, 1, seenPrimary["p-shared"])
}

func mustGet(t *testing.T, store *storage.Store, id string) model.Principle {
	t.Helper()
	p, err := store.GetPrinciple(context.Background(), id)
	require.NoError(t, err)
	return p
}
