// Package token implements the token codec: minting, prefixing, and hashing
// of the opaque bearer secrets Postgate issues.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// secretPrefix is prepended to every minted secret.
const secretPrefix = "pg_"

// secretLen is the total length of a full secret: "pg_" + 64 hex chars.
const secretLen = len(secretPrefix) + 64

// prefixLen is the length of the UI-identification prefix: "pg_" + 5 hex chars.
const prefixLen = len(secretPrefix) + 5

// secretPattern matches the exact wire shape `pg_[0-9a-f]{64}`.
var secretPattern = regexp.MustCompile(`^pg_[0-9a-f]{64}$`)

// Mint draws 32 bytes from a cryptographic RNG and returns the full secret
// `pg_<64 hex chars>`. It fails only if the RNG is unavailable.
func Mint() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: RNG unavailable: %w", err)
	}
	return secretPrefix + hex.EncodeToString(buf), nil
}

// Prefix returns the first 8 characters of a full secret, for UI
// identification without exposing the whole credential.
func Prefix(secret string) string {
	if len(secret) < prefixLen {
		return secret
	}
	return secret[:prefixLen]
}

// Hash returns the lowercase hex-encoded SHA-256 of the full secret. The hash
// is deterministic and side-effect-free: it IS the lookup key, so no
// constant-time comparison is needed at lookup time.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ValidShape reports whether secret matches the exact wire shape the Auth
// Middleware requires before it even attempts a hash lookup.
func ValidShape(secret string) bool {
	return secretPattern.MatchString(secret)
}
