package ledger

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint hashes the request input so identical requests can be matched
// without keeping their text
func Fingerprint(parts []string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
