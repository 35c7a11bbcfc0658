package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "core-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := storage.Open("")
	require.Error(t, err)
}

func TestInsertAndGetThinker(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertThinker(ctx, model.Thinker{
		ID: "taleb", Name: "Nassim Taleb", Domain: model.DomainDecisionMaking, Background: "risk",
	}))

	got, err := store.GetThinker(ctx, "taleb")
	require.NoError(t, err)
	assert.Equal(t, "Nassim Taleb", got.Name)
	assert.Equal(t, model.DomainDecisionMaking, got.Domain)
}

func TestInsertThinkerIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	th := model.Thinker{ID: "taleb", Name: "Nassim Taleb", Domain: model.DomainDecisionMaking, Background: "risk"}
	require.NoError(t, store.InsertThinker(ctx, th))
	th.Background = "updated background"
	require.NoError(t, store.InsertThinker(ctx, th))

	got, err := store.GetThinker(ctx, "taleb")
	require.NoError(t, err)
	assert.Equal(t, "updated background", got.Background)
}

func TestInsertThinkerRejectsUnknownDomain(t *testing.T) {
	store := newTestStore(t)
	err := store.InsertThinker(context.Background(), model.Thinker{ID: "x", Name: "X", Domain: "not-a-domain"})
	require.ErrorIs(t, err, storage.ErrCorpusInvariant)
}

func TestGetThinkerUnknownReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetThinker(context.Background(), "nobody")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertPrincipleRequiresFalsification(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertThinker(ctx, model.Thinker{ID: "taleb", Name: "Taleb", Domain: model.DomainDecisionMaking}))

	err := store.InsertPrinciple(ctx, model.Principle{ID: "p1", ThinkerID: "taleb", Name: "p", Description: "d"})
	require.ErrorIs(t, err, storage.ErrCorpusInvariant)
}

func TestInsertPrincipleRejectsUnknownThinker(t *testing.T) {
	store := newTestStore(t)
	err := store.InsertPrinciple(context.Background(), model.Principle{
		ID: "p1", ThinkerID: "nobody", Name: "p", Description: "d", Falsification: "f",
	})
	require.ErrorIs(t, err, storage.ErrCorpusInvariant)
}

func TestGetPrinciplesByThinkerOrdersByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertThinker(ctx, model.Thinker{ID: "taleb", Name: "Taleb", Domain: model.DomainDecisionMaking}))
	require.NoError(t, store.InsertPrinciple(ctx, model.Principle{ID: "p2", ThinkerID: "taleb", Name: "two", Description: "d", Falsification: "f"}))
	require.NoError(t, store.InsertPrinciple(ctx, model.Principle{ID: "p1", ThinkerID: "taleb", Name: "one", Description: "d", Falsification: "f"}))

	got, err := store.GetPrinciplesByThinker(ctx, "taleb")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
}

func TestPrincipleRoundTripsOptionalFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertThinker(ctx, model.Thinker{ID: "taleb", Name: "Taleb", Domain: model.DomainDecisionMaking}))

	antiPattern := "overfitting to a single backtest"
	appRule := "apply when downside is unbounded"
	require.NoError(t, store.InsertPrinciple(ctx, model.Principle{
		ID: "p1", ThinkerID: "taleb", Name: "one", Description: "d", Falsification: "f",
		DomainTags: []string{"risk", "architecture"}, AntiPattern: &antiPattern, ApplicationRule: &appRule,
		DefaultStance: model.StanceFor,
	}))

	got, err := store.GetPrinciple(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"risk", "architecture"}, got.DomainTags)
	require.NotNil(t, got.AntiPattern)
	assert.Equal(t, antiPattern, *got.AntiPattern)
	require.NotNil(t, got.ApplicationRule)
	assert.Equal(t, appRule, *got.ApplicationRule)
	assert.True(t, got.HasTag("risk"))
	assert.False(t, got.HasTag("security"))
}

func TestLexicalSearchFindsMatchingPrinciples(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertThinker(ctx, model.Thinker{ID: "taleb", Name: "Taleb", Domain: model.DomainDecisionMaking}))
	require.NoError(t, store.InsertPrinciple(ctx, model.Principle{
		ID: "p1", ThinkerID: "taleb", Name: "one", Description: "favor a distributed migration",
		Falsification: "f", DomainTags: []string{"architecture"},
	}))

	results, err := store.LexicalSearch(ctx, "distributed migration", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "p1", results[0].PrincipleID)
}

func TestLexicalSearchEmptyQueryReturnsNoResults(t *testing.T) {
	store := newTestStore(t)
	results, err := store.LexicalSearch(context.Background(), "???", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPersistAndLoadDecision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	domain := "architecture"
	require.NoError(t, store.PersistDecision(ctx, model.DecisionRecord{
		ID: "d1", Question: "q", Domain: &domain, CounselJSON: "{}",
	}))

	got, err := store.LoadDecision(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "q", got.Question)
	require.NotNil(t, got.Domain)
	assert.Equal(t, domain, *got.Domain)
	assert.Equal(t, model.OutcomePending, got.Outcome)
}

func TestLoadDecisionUnknownReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadDecision(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetOutcomeUnknownDecisionFails(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SetOutcome(context.Background(), "nope", true, nil)
	require.ErrorIs(t, err, storage.ErrInvalidDecisionID)
}

func TestSetOutcomeIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PersistDecision(ctx, model.DecisionRecord{ID: "d1", Question: "q", CounselJSON: "{}"}))

	alreadySet, err := store.SetOutcome(ctx, "d1", true, nil)
	require.NoError(t, err)
	assert.False(t, alreadySet)

	alreadySet, err = store.SetOutcome(ctx, "d1", false, nil)
	require.NoError(t, err)
	assert.True(t, alreadySet)

	got, err := store.LoadDecision(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, got.Outcome, "second call must not overwrite the first recorded outcome")
}

func TestArmDefaultsToUniformPrior(t *testing.T) {
	store := newTestStore(t)
	arm, err := store.GetArm(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, arm.Alpha)
	assert.Equal(t, 1.0, arm.Beta)
	assert.Equal(t, 0, arm.Pulls)
}

func TestApplyArmDeltasUpdatesGlobalAndContextualArm(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertThinker(ctx, model.Thinker{ID: "taleb", Name: "Taleb", Domain: model.DomainDecisionMaking}))
	require.NoError(t, store.InsertPrinciple(ctx, model.Principle{ID: "p1", ThinkerID: "taleb", Name: "one", Description: "d", Falsification: "f"}))
	require.NoError(t, store.ApplyArmDeltas(ctx, []storage.ArmDelta{
		{PrincipleID: "p1", Domain: "security", DeltaAlpha: 0.05},
	}))

	global, err := store.GetArm(ctx, "p1")
	require.NoError(t, err)
	assert.InDelta(t, 1.05, global.Alpha, 1e-9)
	assert.Equal(t, 1, global.Pulls)

	ctxArm, err := store.GetContextualArm(ctx, "p1", "security")
	require.NoError(t, err)
	assert.InDelta(t, 1.05, ctxArm.Alpha, 1e-9)
	assert.Equal(t, 1, ctxArm.Pulls)
}

func TestTipHashIsGenesisWhenEmpty(t *testing.T) {
	store := newTestStore(t)
	hash, err := store.TipHash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.GenesisHash, hash)
}

func TestPredecessorHashUnknownDecisionFails(t *testing.T) {
	store := newTestStore(t)
	_, err := store.PredecessorHash(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAllContentHashesSortedIsLexicographic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PersistDecision(ctx, model.DecisionRecord{ID: "d1", Question: "q", CounselJSON: "{}"}))
	require.NoError(t, store.PersistProvenance(ctx, model.ProvenanceLink{
		DecisionID: "d1", ContentHash: "bbb", PreviousHash: model.GenesisHash, AgentPubkey: "pk", Signature: "sig",
	}))
	require.NoError(t, store.PersistDecision(ctx, model.DecisionRecord{ID: "d2", Question: "q", CounselJSON: "{}"}))
	require.NoError(t, store.PersistProvenance(ctx, model.ProvenanceLink{
		DecisionID: "d2", ContentHash: "aaa", PreviousHash: "bbb", AgentPubkey: "pk", Signature: "sig",
	}))

	hashes, err := store.AllContentHashesSorted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, hashes)
}
