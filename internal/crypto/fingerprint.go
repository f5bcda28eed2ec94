package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a short fingerprint of a public key for display.
//
// It hashes with SHA-256, truncates to 10 bytes, and groups the hex into
// blocks of four for out-of-band comparison by humans.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	raw := hex.EncodeToString(sum[:10])
	var b strings.Builder
	for i := 0; i < len(raw); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(raw[i : i+4])
	}
	return b.String()
}
