// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements enrich.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ShortHash returns the first 16 hex characters of the digest, used to key
// stored thumbnail files.
func (h *Hasher) ShortHash(data []byte) (string, error) {
	full, err := h.Hash(data)
	if err != nil {
		return "", err
	}
	return full[:16], nil
}
