package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Hash generates a SHA-256 hash of the input string
func Hash(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ContentID derives the stable identifier of a feed entry from its immutable
// fields. The result only contains [0-9a-f] and does not depend on the
// process, so it can be used as a cross-session dedup and cache key.
func ContentID(title string, publishedAt time.Time, link string) string {
	date := ""
	if !publishedAt.IsZero() {
		date = publishedAt.UTC().Format(time.RFC3339)
	}
	return Hash(strings.Join([]string{title, date, link}, "\x1f"))
}
