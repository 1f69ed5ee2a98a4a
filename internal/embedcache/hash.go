package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the hex SHA-256 of the text. The hash pins a cached
// embedding to the exact content it was computed from.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
