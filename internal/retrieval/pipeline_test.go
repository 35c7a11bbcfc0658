package retrieval_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oraculum-test.db")
	store, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedCorpus(t *testing.T, store *storage.Store) {
	t.Helper()
	ctx := context.Background()

	thinkers := []model.Thinker{
		{ID: "taleb", Name: "Nassim Taleb", Domain: model.DomainDecisionMaking, Background: "risk"},
		{ID: "deming", Name: "W. Edwards Deming", Domain: model.DomainSystems, Background: "quality"},
	}
	for _, th := range thinkers {
		require.NoError(t, store.InsertThinker(ctx, th))
	}

	principles := []model.Principle{
		{
			ID: "antifragility", ThinkerID: "taleb", Name: "Antifragility",
			Description:   "Prefer systems that gain from disorder over migrating to a distributed deployment.",
			DomainTags:    []string{"architecture"},
			Falsification: "the system degrades under volatility instead of improving",
			DefaultStance: model.StanceFor,
		},
		{
			ID: "skin-in-the-game", ThinkerID: "taleb", Name: "Skin in the Game",
			Description:   "Decision makers should bear the downside of a distributed migration decision.",
			DomainTags:    []string{"architecture"},
			Falsification: "the decision maker is insulated from the consequences",
			DefaultStance: model.StanceFor,
		},
		{
			ID: "reduce-variation", ThinkerID: "deming", Name: "Reduce Variation",
			Description:   "A monolith reduces variation in deployment compared to a distributed migration.",
			DomainTags:    []string{"architecture"},
			Falsification: "variation increases after the change",
			DefaultStance: model.StanceAgainst,
		},
	}
	for _, p := range principles {
		require.NoError(t, store.InsertPrinciple(ctx, p))
	}
}

func TestPipelineRunReturnsRankedCandidatesFromLexicalSearch(t *testing.T) {
	store := newTestStore(t)
	seedCorpus(t, store)

	pipeline := retrieval.New(store, nil, nil, retrieval.DefaultConfig())
	result, err := pipeline.Run(context.Background(), "should we do a distributed migration", "architecture", nil, model.DepthStandard)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotEmpty(t, result.Pro)
	require.NotEmpty(t, result.Con)
}

func TestPipelineRunExcludesGivenPrincipleIDs(t *testing.T) {
	store := newTestStore(t)
	seedCorpus(t, store)

	pipeline := retrieval.New(store, nil, nil, retrieval.DefaultConfig())
	result, err := pipeline.Run(context.Background(), "should we do a distributed migration", "architecture", []string{"antifragility", "skin-in-the-game"}, model.DepthStandard)
	require.NoError(t, err)

	for _, c := range result.Pro {
		require.NotEqual(t, "antifragility", c.Principle.ID)
		require.NotEqual(t, "skin-in-the-game", c.Principle.ID)
	}
}

func TestPipelineRunPartialWhenNoLexicalMatches(t *testing.T) {
	store := newTestStore(t)
	seedCorpus(t, store)

	pipeline := retrieval.New(store, nil, nil, retrieval.DefaultConfig())
	result, err := pipeline.Run(context.Background(), "zzyzx nonexistent query terms qqqq", "", nil, model.DepthStandard)
	require.NoError(t, err)
	require.True(t, result.Partial)
	require.Empty(t, result.Pro)
	require.Empty(t, result.Con)
}

func TestPipelineRunIsDeterministicForIdenticalQuestions(t *testing.T) {
	store := newTestStore(t)
	seedCorpus(t, store)

	pipeline := retrieval.New(store, nil, nil, retrieval.DefaultConfig())
	ctx := context.Background()

	first, err := pipeline.Run(ctx, "distributed migration decision", "architecture", nil, model.DepthStandard)
	require.NoError(t, err)
	second, err := pipeline.Run(ctx, "distributed migration decision", "architecture", nil, model.DepthStandard)
	require.NoError(t, err)

	require.Equal(t, len(first.Pro), len(second.Pro))
	for i := range first.Pro {
		require.Equal(t, first.Pro[i].Principle.ID, second.Pro[i].Principle.ID)
		require.InDelta(t, first.Pro[i].SelectionScore, second.Pro[i].SelectionScore, 1e-12)
	}
}
