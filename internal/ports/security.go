package ports

// PasswordHasher hashes a password together with a per-user salt.
// Compare must take the same time for any mismatch.
type PasswordHasher interface {
	NewSalt() (string, error)
	Hash(password, salt string) (string, error)
	Compare(hash, password, salt string) bool
}

// TokenSource mints the unguessable identifiers and numeric codes the managers hand out.
type TokenSource interface {
	Token() (string, error)
	Digits(n int) (string, error)
}
