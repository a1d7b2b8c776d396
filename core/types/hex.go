package types

import (
	"fmt"
	"regexp"
	"strings"
)

var hexPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]+$`)

// NormalizeHex validates that value matches ^(0x)?[0-9a-fA-F]+$ and returns
// its lower-case, "0x"-prefixed canonical form, per spec.md §3's hex-field
// invariant.
func NormalizeHex(value string) (string, error) {
	if !hexPattern.MatchString(value) {
		return "", fmt.Errorf("%q is not a hex-encoded string", value)
	}
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "0x") {
		lower = "0x" + lower
	}
	return lower, nil
}

// MustNormalizeHex is NormalizeHex for values already known to be valid,
// e.g. locally computed hashes.
func MustNormalizeHex(value string) string {
	norm, err := NormalizeHex(value)
	if err != nil {
		panic(err)
	}
	return norm
}

// IsHex reports whether value satisfies the hex-field invariant.
func IsHex(value string) bool {
	return hexPattern.MatchString(value)
}
