// Package sha256 provides SHA-256 digests used to name attachments whose URLs
// carry no usable file name.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements enrich.Hasher using SHA-256.
type Hasher struct {
	size int
}

// New returns a hasher producing full 64 character hex digests.
func New() *Hasher {
	return &Hasher{}
}

// NewTruncated returns a hasher that keeps only the first size hex characters.
func NewTruncated(size int) *Hasher {
	return &Hasher{size: size}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.size > 0 && h.size < len(digest) {
		digest = digest[:h.size]
	}
	return digest, nil
}
