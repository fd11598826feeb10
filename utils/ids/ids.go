package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SectionIDLength is the length of a derived section id in hex characters
const SectionIDLength = 24

// SectionID derives a deterministic replay-section id from the owning
// session token, the viewed file and the window open time. Retried
// submissions for the same open/close cycle produce the same id, which
// keeps the server-side section append idempotent.
func SectionID(sessionToken string, fileID uint, openedAt int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", sessionToken, fileID, openedAt)))
	return hex.EncodeToString(sum[:])[:SectionIDLength]
}

// NewSessionToken generates a random 64-character hex session token
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
