package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/oraculum-ai/oraculum/internal/storage"
)

// DefaultDims is the fixed embedding dimension used when no real embedder
// artifact is configured (spec.md §4.2 allows d in {256, 384}).
const DefaultDims = 256

// LocalIndex is an in-process cosine-similarity index over vectors cached
// from the corpus store. It is always healthy — its EmbedQuery fallback is a
// deterministic hash projection standing in for "an external embedder
// treated as a black box" when no real embedder artifact is configured.
type LocalIndex struct {
	store *storage.Store
	dims  int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewLocalIndex builds a LocalIndex and loads its cache from the store.
func NewLocalIndex(ctx context.Context, store *storage.Store, dims int) (*LocalIndex, error) {
	if dims <= 0 {
		dims = DefaultDims
	}
	idx := &LocalIndex{store: store, dims: dims, vectors: make(map[string][]float32)}
	if err := idx.Refresh(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Refresh reloads the in-memory cache from the corpus store. Safe to call
// periodically after an import batch upserts new embeddings.
func (l *LocalIndex) Refresh(ctx context.Context) error {
	vecs, err := l.store.AllEmbeddings(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.vectors = vecs
	l.mu.Unlock()
	return nil
}

// EmbedQuery deterministically projects text into R^d using a SHA-256-seeded
// stream: identical input always yields an identical vector, matching
// spec.md §4.2's determinism requirement for the black-box embedder.
func (l *LocalIndex) EmbedQuery(text string) []float32 {
	vec := make([]float32, l.dims)
	seed := sha256.Sum256([]byte(text))

	// Expand the 32-byte seed into l.dims float32s by repeatedly re-hashing
	// seed||counter, taking 4 bytes per float — enough entropy for a stable,
	// reproducible placeholder projection.
	counter := uint32(0)
	buf := make([]byte, 4)
	block := seed[:]
	pos := 0
	for i := 0; i < l.dims; i++ {
		if pos+4 > len(block) {
			binary.BigEndian.PutUint32(buf, counter)
			next := sha256.Sum256(append(seed[:], buf...))
			block = next[:]
			pos = 0
			counter++
		}
		bits := binary.BigEndian.Uint32(block[pos : pos+4])
		pos += 4
		// Map to [-1, 1].
		vec[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
	}
	return l2Normalize(vec)
}

// SemanticSearch ranks cached vectors by cosine similarity to queryVec,
// filters to score >= 0, sorts descending, truncates to limit (spec.md §4.2).
func (l *LocalIndex) SemanticSearch(queryVec []float32, limit int) ([]Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]Result, 0, len(l.vectors))
	for id, vec := range l.vectors {
		score := cosine(queryVec, vec)
		if score >= 0 {
			results = append(results, Result{PrincipleID: id, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PrincipleID < results[j].PrincipleID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Healthy is always nil: the in-process index has no external dependency.
func (l *LocalIndex) Healthy() error { return nil }

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, f := range vec {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(vec))
	for i, f := range vec {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
