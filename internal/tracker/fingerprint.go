package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint computes a short content hash for duplicate receipt detection.
// The same vendor (case/whitespace insensitive), amount (to the cent) and
// date always produce the same 16-hex-char fingerprint. No salt: the value
// must be stable across restarts for cross-record matching. 64 bits is a
// heuristic, not a cryptographic guarantee.
func Fingerprint(vendor string, amount float64, date string) string {
	normalized := fmt.Sprintf("%s|%.2f|%s", strings.ToLower(strings.TrimSpace(vendor)), amount, date)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
