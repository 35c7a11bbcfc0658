package semantic

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the optional ANN-backed index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dims       int
}

// QdrantIndex is an Index backed by a Qdrant collection of principle
// embeddings. A Qdrant outage makes SemanticSearch return an error, which the
// retrieval pipeline treats as no semantic candidates rather than a fatal
// error, per spec.md §4.2/§7 — callers must still check Healthy to decide
// whether to surface a degraded-mode notice.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       int
	local      *LocalIndex // EmbedQuery fallback; Qdrant stores vectors but does not compute them

	mu            sync.Mutex
	lastCheck     time.Time
	lastHealthy   error
	healthTTL     time.Duration
}

// NewQdrantIndex dials Qdrant and ensures the target collection exists.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, local *LocalIndex) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("semantic: parse qdrant url %q: %w", cfg.URL, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant: %w", err)
	}

	dims := cfg.Dims
	if dims <= 0 {
		dims = DefaultDims
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       dims,
		local:      local,
		healthTTL:  5 * time.Second,
	}

	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// parseQdrantURL accepts either a REST (6333) or gRPC (6334) endpoint and
// always dials gRPC, auto-translating the REST port the way operators
// typically paste it from the Qdrant dashboard.
func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, err
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("missing host")
	}
	portStr := u.Port()
	if portStr == "" {
		return host, 6334, useTLS, nil
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid port %q", portStr)
	}
	if p == 6333 {
		p = 6334
	}
	return host, p, useTLS, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("semantic: check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dims),
			Distance: qdrant.Distance_Cosine,
			HnswConfig: &qdrant.HnswConfigDiff{
				M:             qdrant.PtrOf(uint64(16)),
				EfConstruct:   qdrant.PtrOf(uint64(128)),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "domain",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("semantic: create domain field index: %w", err)
	}
	return nil
}

// EmbedQuery delegates to the in-process projection; Qdrant itself is a
// vector store, not an embedder.
func (q *QdrantIndex) EmbedQuery(text string) []float32 {
	return q.local.EmbedQuery(text)
}

// Upsert stores one principle's vector and its domain_tags payload.
func (q *QdrantIndex) Upsert(ctx context.Context, principleID string, vec []float32, domainTags []string) error {
	payload := map[string]*qdrant.Value{
		"principle_id": qdrant.NewValue(principleID),
		"domain_tags":  qdrant.NewValue(strings.Join(domainTags, ",")),
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(stableID(principleID)),
				Vectors: qdrant.NewVectors(vec...),
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %s: %w", principleID, err)
	}
	return nil
}

// SemanticSearch over-fetches 3x and filters client side for score >= 0,
// matching LocalIndex's contract.
func (q *QdrantIndex) SemanticSearch(queryVec []float32, limit int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	fetch := uint64(limit * 3)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(queryVec...),
		Limit:          &fetch,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		q.recordHealth(err)
		return nil, fmt.Errorf("semantic: qdrant search: %w", err)
	}
	q.recordHealth(nil)

	out := make([]Result, 0, len(points))
	for _, p := range points {
		if p.Score < 0 {
			continue
		}
		out = append(out, Result{PrincipleID: idFromPayload(p), Score: p.Score})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Healthy reports the most recent query outcome, cached for healthTTL so
// every call does not round-trip to Qdrant.
func (q *QdrantIndex) Healthy() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if time.Since(q.lastCheck) > q.healthTTL {
		return nil // stale cache, treat as optimistically healthy until next search
	}
	return q.lastHealthy
}

func (q *QdrantIndex) recordHealth(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastCheck = time.Now()
	q.lastHealthy = err
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func stableID(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func idFromPayload(p *qdrant.ScoredPoint) string {
	if v, ok := p.Payload["principle_id"]; ok {
		return v.GetStringValue()
	}
	return ""
}
