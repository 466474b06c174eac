package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"widgetd/internal/widget"
)

const (
	MinTokenLen = 8
	MaxTokenLen = 16
)

// ValidateTokenShape accepts owner tokens of 8 to 16 characters.
// The token itself is opaque; only its length is constrained.
func ValidateTokenShape(token string) error {
	if len(token) < MinTokenLen || len(token) > MaxTokenLen {
		return widget.ErrInvalidCredential
	}
	return nil
}

// Hash returns the hex-encoded SHA-256 digest of token. The digest is the
// only form in which a credential is ever persisted or compared.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authorize reports whether the provided plaintext token hashes to
// storedDigest. Comparison is constant-time.
func Authorize(providedToken, storedDigest string) bool {
	return EqualDigest(Hash(providedToken), storedDigest)
}

// EqualDigest compares two digests in constant time.
func EqualDigest(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
