package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"
)

// UpsertEmbedding stores a principle's embedding vector, L2-normalising it
// first (spec.md §4.2). The caller (the out-of-scope corpus-ingest
// collaborator, or an embedder artefact loaded via
// config.EmbedderModelPath) hands embeddings across this boundary as
// pgvector.Vector, matching the shape an embedding provider naturally
// produces; vectors are unpacked to float32 and stored as little-endian
// bytes since this store has no native vector column.
func (s *Store) UpsertEmbedding(ctx context.Context, principleID string, vec pgvector.Vector) error {
	normalized := l2Normalize(vec.Slice())

	buf := new(bytes.Buffer)
	for _, f := range normalized {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("storage: encode embedding for %s: %w", principleID, err)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principle_embeddings (principle_id, dims, vector) VALUES (?, ?, ?)
		ON CONFLICT(principle_id) DO UPDATE SET dims=excluded.dims, vector=excluded.vector
	`, principleID, len(normalized), buf.Bytes())
	if err != nil {
		return fmt.Errorf("%w: upsert embedding for %s: %v", ErrUnavailable, principleID, err)
	}
	return nil
}

// AllEmbeddings loads every stored principle embedding, used by
// semantic.LocalIndex to build its in-memory cache at startup and refresh.
func (s *Store) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT principle_id, dims, vector FROM principle_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("%w: list embeddings: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var dims int
		var raw []byte
		if err := rows.Scan(&id, &dims, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan embedding: %v", ErrUnavailable, err)
		}
		vec := make([]float32, dims)
		r := bytes.NewReader(raw)
		for i := 0; i < dims; i++ {
			if err := binary.Read(r, binary.LittleEndian, &vec[i]); err != nil {
				return nil, fmt.Errorf("%w: decode embedding for %s: %v", ErrUnavailable, id, err)
			}
		}
		out[id] = vec
	}
	return out, rows.Err()
}

// GetEmbedding loads a single principle's embedding, or an error wrapping
// ErrNotFound if none is stored.
func (s *Store) GetEmbedding(ctx context.Context, principleID string) ([]float32, error) {
	all, err := s.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	vec, ok := all[principleID]
	if !ok {
		return nil, fmt.Errorf("%w: embedding for %s", ErrNotFound, principleID)
	}
	return vec, nil
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
