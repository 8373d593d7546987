package security

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2ID = "argon2id"

// Argon2Config tunes the Argon2id cost. Zero fields fall back to defaults.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  int
}

// Argon2Hasher hashes password+salt with Argon2id. The salt lives next to the hash in
// the user record; the encoded hash carries its own cost parameters so older hashes
// keep verifying after the config changes.
type Argon2Hasher struct {
	cfg Argon2Config
}

func NewArgon2Hasher(cfg Argon2Config) *Argon2Hasher {
	if cfg.Memory == 0 {
		cfg.Memory = 64 * 1024
	}
	if cfg.Time == 0 {
		cfg.Time = 1
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 2
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = 32
	}
	if cfg.SaltLength <= 0 {
		cfg.SaltLength = 16
	}
	return &Argon2Hasher{cfg: cfg}
}

func (h *Argon2Hasher) NewSalt() (string, error) {
	salt, err := randomHex(h.cfg.SaltLength)
	if err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}

func (h *Argon2Hasher) Hash(password, salt string) (string, error) {
	if salt == "" {
		return "", errors.New("salt is required")
	}
	key := argon2.IDKey([]byte(password), []byte(salt), h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s",
		argon2ID,
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Time,
		h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare recomputes the key with the parameters embedded in hash. Malformed hashes
// never match.
func (h *Argon2Hasher) Compare(hash, password, salt string) bool {
	params, want, err := parseEncoded(hash)
	if err != nil || salt == "" {
		return false
	}
	got := argon2.IDKey([]byte(password), []byte(salt), params.Time, params.Memory, params.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseEncoded(encoded string) (Argon2Config, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != argon2ID {
		return Argon2Config{}, nil, errors.New("invalid argon2 hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2Config{}, nil, errors.New("unsupported argon2 version")
	}
	var cfg Argon2Config
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Time, &cfg.Parallelism); err != nil {
		return Argon2Config{}, nil, fmt.Errorf("invalid argon2 parameters: %w", err)
	}
	if cfg.Memory == 0 || cfg.Time == 0 || cfg.Parallelism == 0 {
		return Argon2Config{}, nil, errors.New("invalid argon2 parameters")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return Argon2Config{}, nil, errors.New("invalid argon2 key encoding")
	}
	return cfg, key, nil
}
