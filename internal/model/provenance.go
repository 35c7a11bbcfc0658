package model

// GenesisHash is the fixed predecessor hash for the first record in the
// chain: 32 zero bytes, hex-encoded.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ProvenanceLink binds a decision record into the hash chain.
//
// Chain invariant: for every record R with a non-genesis predecessor P,
// R.PreviousHash == P.ContentHash; Signature verifies under AgentPubkey
// over ContentHash||PreviousHash.
type ProvenanceLink struct {
	DecisionID   string `json:"decision_id"`
	ContentHash  string `json:"content_hash"`
	PreviousHash string `json:"previous_hash"`
	AgentPubkey  string `json:"agent_pubkey"` // hex-encoded Ed25519 public key
	Signature    string `json:"signature"`    // hex-encoded Ed25519 signature
}

// AuditResult is the response shape for audit_decision.
type AuditResult struct {
	DecisionID   string `json:"decision_id"`
	ChainValid   bool   `json:"chain_valid"`
	FailedReason string `json:"failed_reason,omitempty"`
	ProvenanceLink
}
