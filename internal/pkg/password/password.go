package password

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"unicode"
)

const (
	// MinLength is the minimum accepted password length
	MinLength = 8
)

// Policy violations
var (
	ErrTooShort     = errors.New("password must be at least 8 characters")
	ErrNoLetter     = errors.New("password must contain a letter")
	ErrNoDigit      = errors.New("password must contain a digit")
	ErrSameAsBefore = errors.New("new password must differ from the current password")
)

// Validate checks a new password against the console policy before it is
// sent to the backend
func Validate(current, next string) error {
	if len(next) < MinLength {
		return ErrTooShort
	}

	var hasLetter, hasDigit bool
	for _, r := range next {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return ErrNoLetter
	}
	if !hasDigit {
		return ErrNoDigit
	}
	if current != "" && current == next {
		return ErrSameAsBefore
	}
	return nil
}

// Fingerprint hashes a token using SHA256 so it can be logged without
// leaking the credential
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])[:12]
}
