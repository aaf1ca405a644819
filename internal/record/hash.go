// Package record computes canonical content hashes for traceability records.
// Upstream systems hash a record here, anchor the digest on chain, and later
// re-hash the stored record to detect tampering. Hashing goes through JCS
// (RFC 8785) so that JSON key order and whitespace do not change the digest.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/fairtrace/trace-core/internal/domain"
)

// Hash canonicalizes a JSON document and returns its SHA-256 digest
func Hash(doc []byte) (domain.RecordHash, error) {
	canonical, err := jcs.Transform(doc)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize record: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return domain.RecordHash("0x" + hex.EncodeToString(sum[:])), nil
}

// HashValue marshals v to JSON and hashes the canonical form
func HashValue(v interface{}) (domain.RecordHash, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return Hash(doc)
}
