package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short, stable, non-reversible tag for a secret so that it can be
// told apart in logs without being printed. The empty string has the fingerprint "none".
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}
