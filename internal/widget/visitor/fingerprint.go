package visitor

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable anonymous visitor identifier from the
// request's network origin and client signature (typically IP and
// User-Agent). The same pair always yields the same identifier; the
// identifier cannot be reversed to either input. Truncated to 16 bytes
// of the digest — plenty for dedup, useless for identification.
func Fingerprint(origin, clientSignature string) string {
	h := sha256.New()
	h.Write([]byte(origin))
	h.Write([]byte{0})
	h.Write([]byte(clientSignature))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
