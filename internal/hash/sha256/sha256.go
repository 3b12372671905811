// Package sha256 hashes client identifiers before they reach the frontier.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher turns raw user IDs into stable hex digests, optionally salted.
type Hasher struct {
	salt []byte
}

// New returns a Hasher that prefixes every input with salt.
func New(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// HashUserID returns the hex SHA-256 of salt+userID.
func (h *Hasher) HashUserID(userID string) string {
	sum := sha256.New()
	sum.Write(h.salt)
	sum.Write([]byte(userID))
	return hex.EncodeToString(sum.Sum(nil))
}
