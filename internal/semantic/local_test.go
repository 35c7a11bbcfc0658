package semantic_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraculum-ai/oraculum/internal/semantic"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

func pgvectorOf(vec []float32) pgvector.Vector {
	return pgvector.NewVector(vec)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "semantic-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEmbedQueryIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	idx, err := semantic.NewLocalIndex(context.Background(), store, semantic.DefaultDims)
	require.NoError(t, err)

	a := idx.EmbedQuery("should we use a monolith")
	b := idx.EmbedQuery("should we use a monolith")
	require.Equal(t, a, b)
	assert.Len(t, a, semantic.DefaultDims)
}

func TestEmbedQueryDiffersForDifferentText(t *testing.T) {
	store := newTestStore(t)
	idx, err := semantic.NewLocalIndex(context.Background(), store, semantic.DefaultDims)
	require.NoError(t, err)

	a := idx.EmbedQuery("monolith")
	b := idx.EmbedQuery("microservices")
	assert.NotEqual(t, a, b)
}

func TestEmbedQueryVectorIsUnitNorm(t *testing.T) {
	store := newTestStore(t)
	idx, err := semantic.NewLocalIndex(context.Background(), store, semantic.DefaultDims)
	require.NoError(t, err)

	vec := idx.EmbedQuery("caching strategy")
	var sumSq float64
	for _, f := range vec {
		sumSq += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-3)
}

func TestLocalIndexAlwaysHealthy(t *testing.T) {
	store := newTestStore(t)
	idx, err := semantic.NewLocalIndex(context.Background(), store, semantic.DefaultDims)
	require.NoError(t, err)
	assert.NoError(t, idx.Healthy())
}

func TestSemanticSearchRanksByCosineSimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEmbedding(ctx, "p1", pgvectorOf([]float32{1, 0, 0})))
	require.NoError(t, store.UpsertEmbedding(ctx, "p2", pgvectorOf([]float32{0, 1, 0})))
	require.NoError(t, store.UpsertEmbedding(ctx, "p3", pgvectorOf([]float32{-1, 0, 0})))

	idx, err := semantic.NewLocalIndex(ctx, store, 3)
	require.NoError(t, err)

	results, err := idx.SemanticSearch([]float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "p1", results[0].PrincipleID)
	for _, r := range results {
		assert.NotEqual(t, "p3", r.PrincipleID, "negative-cosine vectors must be filtered out")
	}
}

func TestSemanticSearchRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, store.UpsertEmbedding(ctx, id, pgvectorOf([]float32{1, float32(i) * 0.01, 0})))
	}

	idx, err := semantic.NewLocalIndex(ctx, store, 3)
	require.NoError(t, err)

	results, err := idx.SemanticSearch([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRefreshPicksUpNewlyStoredEmbeddings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idx, err := semantic.NewLocalIndex(ctx, store, 3)
	require.NoError(t, err)

	results, err := idx.SemanticSearch([]float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, store.UpsertEmbedding(ctx, "p1", pgvectorOf([]float32{1, 0, 0})))
	require.NoError(t, idx.Refresh(ctx))

	results, err = idx.SemanticSearch([]float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].PrincipleID)
}
