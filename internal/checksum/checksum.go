// Package checksum provides content-hash helpers shared by the document
// store, the embedding cache and the content-addressed ID scheme.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString returns the hex-encoded SHA-256 digest of a string.
func SumString(s string) string {
	return Sum([]byte(s))
}
