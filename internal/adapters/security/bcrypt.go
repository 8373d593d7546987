package security

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes password+salt with bcrypt. bcrypt only reads 72 bytes, so the
// salted password is pre-hashed with SHA-256 first; the stored salt still has to match.
type BcryptHasher struct {
	cost       int
	saltLength int
}

// NewBcryptHasher creates a bcrypt-based hasher with default fallback cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost, saltLength: 16}
}

func (h *BcryptHasher) NewSalt() (string, error) {
	salt, err := randomHex(h.saltLength)
	if err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}

func (h *BcryptHasher) Hash(password, salt string) (string, error) {
	if salt == "" {
		return "", errors.New("salt is required")
	}
	hashed, err := bcrypt.GenerateFromPassword(prehash(password, salt), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, password, salt string) bool {
	if salt == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password, salt)) == nil
}

func prehash(password, salt string) []byte {
	sum := sha256.Sum256([]byte(password + salt))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}
