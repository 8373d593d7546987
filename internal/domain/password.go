package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
	maxNameLength     = 20
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// NormalizeEmail trims and lowercases an address and checks its format.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return trimmed, nil
}

// ValidatePassword enforces the password policy: 8 to 256 characters with at
// least one letter, one digit and one symbol.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidInput, minPasswordLength, maxPasswordLength)
	}

	var hasLetter, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r == '_':
			hasSymbol = true
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasLetter || !hasDigit || !hasSymbol {
		return fmt.Errorf("%w: password must include a letter, a digit, and a symbol", ErrInvalidInput)
	}
	return nil
}

// ValidateName accepts 1 to 20 letters, digits or underscores (Hangul included).
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxNameLength {
		return fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalidInput, maxNameLength)
	}
	for _, r := range name {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: name may only contain letters, digits, and underscores", ErrInvalidInput)
		}
	}
	return nil
}

// ValidateProfileURL requires an absolute http(s) URL.
func ValidateProfileURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: profile image url is required", ErrInvalidInput)
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: profile image url must be an absolute http(s) url", ErrInvalidInput)
	}
	return nil
}

