package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// LexicalResult is one hit from lexical_search: a principle id and its
// BM25-derived score. Higher is better (the raw FTS5 bm25() value, which is
// a cost and therefore negative, is negated here so scores sort the same
// direction as semantic/RRF scores).
type LexicalResult struct {
	PrincipleID string
	Score       float64
}

var ftsSpecialChars = regexp.MustCompile(`["*^:]`)

// sanitizeFTSQuery strips FTS5 query-syntax operators from free text so a
// question like `Should we use: caching?` can't produce a syntax error, then
// quotes each remaining token and joins them into a single OR query — lexical
// search favors recall, the reranker narrows it back down.
func sanitizeFTSQuery(query string) string {
	cleaned := ftsSpecialChars.ReplaceAllString(query, " ")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, "") + `"`
	}
	return strings.Join(quoted, " OR ")
}

// LexicalSearch tokenises query and performs a full-text match against the
// name+description+domain_tags index, optionally filtered to a domain tag.
// Results are ordered by BM25 score descending, ties broken by principle id
// (spec.md §4.1).
func (s *Store) LexicalSearch(ctx context.Context, query string, domain string, limit int) ([]LexicalResult, error) {
	ftsQuery := sanitizeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, bm25(principle_fts) AS rank
		FROM principle_fts
		JOIN principles p ON p.rowid = principle_fts.rowid
		WHERE principle_fts MATCH ?
		  AND (? = '' OR p.domain_tags LIKE '%' || ? || '%')
		ORDER BY rank ASC, p.id ASC
		LIMIT ?
	`, ftsQuery, domain, domain, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: lexical search: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []LexicalResult
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("%w: scan lexical result: %v", ErrUnavailable, err)
		}
		// bm25() returns a cost (lower is a better match); negate so that,
		// like cosine similarity, a larger score means more relevant.
		out = append(out, LexicalResult{PrincipleID: id, Score: -rank})
	}
	return out, rows.Err()
}
