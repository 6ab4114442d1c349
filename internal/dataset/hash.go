package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "recset/snapshot/v1"
	DomainUserHash = "recset/user/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashUserID returns the irreversible user_hash for a raw user identifier.
//
// With an empty salt the result is the plain hex SHA-256 of the identifier,
// so hashes stay comparable with datasets produced by earlier tooling. A
// non-empty salt is mixed in with domain separation.
func HashUserID(userID, salt string) string {
	if salt == "" {
		sum := sha256.Sum256([]byte(userID))
		return hex.EncodeToString(sum[:])
	}
	return hashWithDomain(DomainUserHash, []byte(salt+"\x00"+userID))
}

// Digest computes the content digest of a dataset: the active column list
// followed by every row in canonical JSON, in order. Equal digests mean
// equal columns, equal values and equal row order.
func Digest(d *Dataset) (string, error) {
	h := sha256.New()
	h.Write([]byte(DomainSnapshot))
	h.Write([]byte{0x00})

	header, err := MarshalCanonical(d.Columns())
	if err != nil {
		return "", fmt.Errorf("digest columns: %w", err)
	}
	h.Write(header)
	for i, r := range d.Rows {
		payload, err := EncodeRow(d.columns, r)
		if err != nil {
			return "", fmt.Errorf("digest row %d: %w", i, err)
		}
		h.Write([]byte{'\n'})
		h.Write(payload)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
