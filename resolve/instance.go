package resolve

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`\$\{sls:\s*instanceId\s*\}`)

// IDGenerator produces the replacement for each `${sls:instanceId}`.
type IDGenerator func() (string, error)

// RandomHexID returns 16 random bytes encoded as 32 hex characters.
func RandomHexID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("slsconfig: generate instance id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// PrefillInstanceIDs replaces every `${sls:instanceId}` in text with a fresh
// identifier. Each occurrence gets its own value.
func PrefillInstanceIDs(text string, gen IDGenerator) (string, error) {
	if gen == nil {
		gen = RandomHexID
	}
	var firstErr error
	out := instanceIDPattern.ReplaceAllStringFunc(text, func(string) string {
		id, err := gen()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return id
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
