package utils

import (
	"crypto/rand"
	"fmt"
	"time"
)

// GenerateUUID returns a random RFC 4122 version 4 UUID without external
// dependencies. If the system entropy source fails it falls back to a
// timestamp-derived identifier, which is unique enough for temp file names
// and log correlation.
func GenerateUUID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		now := time.Now().UnixNano()
		for i := range b {
			b[i] = byte(now >> (uint(i%8) * 8))
		}
	}

	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
