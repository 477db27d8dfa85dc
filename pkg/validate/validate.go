// Package validate provides pure string predicates used by the auth service.
// Predicates only inspect their input; policy about which checks apply lives
// with the caller.
package validate

import (
	"net/mail"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest acceptable password.
const MinPasswordLength = 8

// Email reports whether s parses as a single RFC 5322 address without a
// display name.
func Email(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == s && strings.Contains(s, ".")
}

// PasswordStrength reports whether s meets the minimum strength bar: at
// least MinPasswordLength characters with both a letter and a digit.
func PasswordStrength(s string) bool {
	if len(s) < MinPasswordLength {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// NonEmpty reports whether s contains any non-whitespace character.
func NonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}
