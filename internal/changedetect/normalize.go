package changedetect

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize reduces regulatory text to its content: CRLF becomes LF and
// every run of whitespace collapses to a single space. Cosmetic
// re-formatting must never register as a change, so hashing and similarity
// both operate on normalized text.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Join(strings.Fields(s), " ")
}

// ContentHash is the SHA-256 of the normalized text.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}
