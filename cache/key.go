package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key hashes a cache lookup identity (request URL plus the values of any
// Vary-listed request headers, pre-joined by the caller) down to the
// journal's key alphabet.
func Key(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// validKey reports whether k matches the journal's key alphabet. Hex SHA-256
// digests always do; this guards against a corrupted journal line handing
// back something else.
func validKey(k string) bool {
	if len(k) < 1 || len(k) > 120 {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
