// Package id generates export job identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// Prefix starts every generated ID.
const Prefix = "exp-"

var pattern = regexp.MustCompile(`^exp-\d+(-[0-9a-f]{8})?$`)

// Generate creates a new unique job ID.
// Format: exp-<unix-nanos>-<random>
// Example: exp-1701432000123456789-a1b2c3d4
func Generate() string {
	timestamp := time.Now().UnixNano()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("%s%d", Prefix, timestamp)
	}
	return fmt.Sprintf("%s%d-%s", Prefix, timestamp, hex.EncodeToString(random))
}

// Valid reports whether s has the shape of a generated ID.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
