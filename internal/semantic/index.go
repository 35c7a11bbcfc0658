// Package semantic implements the semantic index (C2): fixed-dimension
// embedding vectors per principle and cosine-similarity retrieval, with an
// optional Qdrant-backed ANN index behind the same interface.
package semantic

// Result is one semantic_search hit.
type Result struct {
	PrincipleID string
	Score       float32 // cosine similarity, (-1, 1)
}

// Index is the capability interface C6 calls. A missing or unhealthy index
// is not an error at this layer — spec.md §4.2 and §7 require C6 to treat an
// empty/absent index as "no semantic candidates," never as a fatal error.
type Index interface {
	// EmbedQuery is deterministic for identical input (spec.md §4.2).
	EmbedQuery(text string) []float32

	// SemanticSearch returns principles whose embedding has cosine
	// similarity >= 0 with queryVec, sorted descending, truncated to limit.
	SemanticSearch(queryVec []float32, limit int) ([]Result, error)

	// Healthy reports whether the index is currently usable. LocalIndex is
	// always healthy; QdrantIndex caches a periodic health check.
	Healthy() error
}
