package provenance

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/oraculum-ai/oraculum/internal/storage"
)

// hashPair computes SHA256(0x01 || len(a) || a || b), a domain-separated
// internal Merkle node hash that can never collide with a leaf content hash.
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	aBytes := []byte(a)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(aBytes)))
	h.Write(lenBuf[:])
	h.Write(aBytes)
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot builds a bottom-up Merkle tree over leaves (which must
// already be sorted by the caller) and returns the root. An odd node at any
// level is paired with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// AuditRoot computes the current Merkle root over every signed decision's
// content hash, for periodic audit-batch publication. An empty store yields
// an empty root string.
func AuditRoot(ctx context.Context, store *storage.Store) (string, error) {
	leaves, err := store.AllContentHashesSorted(ctx)
	if err != nil {
		return "", fmt.Errorf("provenance: list content hashes: %w", err)
	}
	return BuildMerkleRoot(leaves), nil
}
