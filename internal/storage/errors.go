package storage

import "errors"

// Sentinel errors matching the taxonomy in spec.md §7. Callers use
// errors.Is against these; wrapping adds operation context.
var (
	// ErrNotFound covers unknown decision_id, principle_id, or thinker_id.
	ErrNotFound = errors.New("storage: not found")

	// ErrUnavailable surfaces transient I/O failure on the persistence
	// layer. Callers may retry; the store does not retry internally.
	ErrUnavailable = errors.New("storage: unavailable")

	// ErrCorpusInvariant marks malformed thinker/principle data detected
	// at import time (fatal) or skipped at runtime (logged, not fatal).
	ErrCorpusInvariant = errors.New("storage: corpus invariant violated")

	// ErrInvalidDecisionID is returned by SetOutcome when the id is unknown.
	ErrInvalidDecisionID = errors.New("storage: invalid decision id")
)
