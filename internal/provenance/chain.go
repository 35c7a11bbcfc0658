// Package provenance implements the provenance chain (C9): Ed25519-signed,
// hash-linked decision records and optional Merkle batch-proofs for audit.
package provenance

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/storage"
)

// ErrInsecureKey is returned by Init when a private key file on disk is
// readable or writable by group/world (spec.md §4.9).
var ErrInsecureKey = errors.New("provenance: key file has overly permissive mode, expected 0600 or stricter")

// ErrProvenanceViolation wraps every Verify failure mode (tampered content,
// broken link, invalid signature). It is never recovered automatically.
var ErrProvenanceViolation = errors.New("provenance: chain violation")

// Chain signs and verifies decision records using an Ed25519 key pair loaded
// once at startup.
type Chain struct {
	store      *storage.Store
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// Init loads an Ed25519 private key from keyPath, or generates and persists
// a new one (mode 0600) if none exists. An existing key file with a mode
// looser than 0600 is rejected as ErrInsecureKey rather than silently
// trusted (spec.md §4.9).
func Init(store *storage.Store, keyPath string) (*Chain, error) {
	if keyPath == "" {
		slog.Warn("provenance: no key path configured, generating ephemeral key pair (not for production)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("provenance: generate key pair: %w", err)
		}
		return &Chain{store: store, privateKey: priv, publicKey: pub}, nil
	}

	info, err := os.Stat(keyPath)
	if errors.Is(err, os.ErrNotExist) {
		return generateAndPersist(store, keyPath)
	}
	if err != nil {
		return nil, fmt.Errorf("provenance: stat key %s: %w", keyPath, err)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %04o", ErrInsecureKey, keyPath, perm)
	}

	raw, err := os.ReadFile(keyPath) //nolint:gosec // path comes from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("provenance: read key %s: %w", keyPath, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("provenance: decode key PEM %s", keyPath)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("provenance: parse key %s: %w", keyPath, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("provenance: key %s is not Ed25519", keyPath)
	}

	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("provenance: derive public key from %s", keyPath)
	}

	return &Chain{store: store, privateKey: priv, publicKey: pub}, nil
}

func generateAndPersist(store *storage.Store, keyPath string) (*Chain, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("provenance: generate key pair: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("provenance: marshal key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("provenance: persist key %s: %w", keyPath, err)
	}

	return &Chain{store: store, privateKey: priv, publicKey: pub}, nil
}

// PublicKeyHex returns the hex-encoded public key, stored alongside every
// signed record so Verify can later check signatures without re-deriving it.
func (c *Chain) PublicKeyHex() string {
	return hex.EncodeToString(c.publicKey)
}

// SignDecision computes the content hash of rec, reads the chain tip, signs
// content_hash||previous_hash, and returns the ProvenanceLink to be persisted
// atomically alongside rec (spec.md §4.9; the persist -> sign -> return
// sequence is made atomic by the caller doing both before returning, per
// spec.md §5).
func (c *Chain) SignDecision(ctx context.Context, rec model.DecisionRecord) (model.ProvenanceLink, error) {
	previousHash, err := c.store.TipHash(ctx)
	if err != nil {
		return model.ProvenanceLink{}, fmt.Errorf("provenance: read tip hash: %w", err)
	}

	contentHash := CanonicalHash(rec)
	sig := ed25519.Sign(c.privateKey, []byte(contentHash+previousHash))

	return model.ProvenanceLink{
		DecisionID:   rec.ID,
		ContentHash:  contentHash,
		PreviousHash: previousHash,
		AgentPubkey:  c.PublicKeyHex(),
		Signature:    hex.EncodeToString(sig),
	}, nil
}

// Verify recomputes the content hash, checks the previous-hash link against
// the predecessor record, and verifies the signature under the stored
// pubkey. Every failure mode is a chain violation surfaced as an
// AuditResult, never silently recovered.
func (c *Chain) Verify(ctx context.Context, decisionID string) (model.AuditResult, error) {
	rec, err := c.store.LoadDecision(ctx, decisionID)
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("provenance: load decision %s: %w", decisionID, err)
	}

	link, err := c.store.LoadProvenance(ctx, decisionID)
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("provenance: load provenance %s: %w", decisionID, err)
	}

	result := model.AuditResult{DecisionID: decisionID, ProvenanceLink: link}

	recomputed := CanonicalHash(rec)
	if recomputed != link.ContentHash {
		result.ChainValid = false
		result.FailedReason = "tampered content: recomputed hash does not match stored hash"
		return result, nil
	}

	predecessor, err := c.store.PredecessorHash(ctx, decisionID)
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("provenance: predecessor hash %s: %w", decisionID, err)
	}
	if predecessor != link.PreviousHash {
		result.ChainValid = false
		result.FailedReason = "broken link: previous_hash does not match predecessor"
		return result, nil
	}

	pubkey, err := hex.DecodeString(link.AgentPubkey)
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("provenance: decode pubkey for %s: %w", decisionID, err)
	}
	sig, err := hex.DecodeString(link.Signature)
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("provenance: decode signature for %s: %w", decisionID, err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pubkey), []byte(link.ContentHash+link.PreviousHash), sig) {
		result.ChainValid = false
		result.FailedReason = "invalid signature"
		return result, nil
	}

	result.ChainValid = true
	return result, nil
}

// CanonicalHash hashes the immutable fields of a decision record — id,
// question, domain, counsel_json, created_at — omitting outcome, notes, and
// outcome_recorded_at, which mutate after the record is first signed
// (spec.md §4.9). Encoding is length-prefixed to avoid delimiter collisions
// in freeform text fields.
func CanonicalHash(rec model.DecisionRecord) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		lenBuf[0] = byte(len(s) >> 24)
		lenBuf[1] = byte(len(s) >> 16)
		lenBuf[2] = byte(len(s) >> 8)
		lenBuf[3] = byte(len(s))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}

	domain := ""
	if rec.Domain != nil {
		domain = *rec.Domain
	}

	writeField(rec.ID)
	writeField(rec.Question)
	writeField(domain)
	writeField(rec.CounselJSON)
	writeField(rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"))
	return hex.EncodeToString(h.Sum(nil))
}
