package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// UserCodeAlphabet is the character set for device flow user codes. It leaves
// out vowels and the glyphs people confuse when reading a code off a TV
// (0/O, 1/I, 2/Z, B/8).
const UserCodeAlphabet = "CDFGHJKLMNPQRSTVWXY3456789"

// UserCodeLength is the number of significant characters in a user code.
const UserCodeLength = 8

// GenerateUserCode returns a random user code without separators.
func GenerateUserCode() (string, error) {
	size := big.NewInt(int64(len(UserCodeAlphabet)))
	out := make([]byte, UserCodeLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate user code: %w", err)
		}
		out[i] = UserCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// NormalizeUserCode upper-cases a typed code and drops spaces and dashes, so
// "wdjb-mjht" and "WDJB MJHT" compare equal.
func NormalizeUserCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		switch r {
		case ' ', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatUserCode inserts a dash in the middle of a normalized code for display.
func FormatUserCode(code string) string {
	if len(code) < 2 {
		return code
	}
	half := len(code) / 2
	return code[:half] + "-" + code[half:]
}
