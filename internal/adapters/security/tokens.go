package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// RandomTokens draws identifiers and numeric codes from crypto/rand.
type RandomTokens struct {
	bytes int
}

// NewRandomTokens returns a source whose tokens carry n random bytes (hex encoded).
func NewRandomTokens(n int) *RandomTokens {
	if n < 16 {
		n = 32
	}
	return &RandomTokens{bytes: n}
}

func (t *RandomTokens) Token() (string, error) {
	token, err := randomHex(t.bytes)
	if err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return token, nil
}

// Digits returns a uniformly random zero-padded decimal string of length n.
func (t *RandomTokens) Digits(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("digit count must be positive")
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	s := v.String()
	return strings.Repeat("0", n-len(s)) + s, nil
}

func randomHex(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
