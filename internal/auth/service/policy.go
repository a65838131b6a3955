package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	minNameLength     = 2
	maxNameLength     = 50
	maxEmailLength    = 254
)

// NormalizeEmail trims and lower-cases an address. Emails are unique
// case-insensitively, so every lookup goes through here.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address ("a@b.c"), nothing with a display name.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return fmt.Errorf("%w: invalid email address", ErrWeakCredential)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("%w: invalid email address", ErrWeakCredential)
	}
	at := strings.LastIndexByte(email, '@')
	if !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("%w: invalid email address", ErrWeakCredential)
	}
	return nil
}

// ValidatePassword enforces length plus one character from each class:
// lower case, upper case, digit and symbol.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrWeakCredential, minPasswordLength)
	}
	if n > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrWeakCredential, maxPasswordLength)
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' ':
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return fmt.Errorf("%w: password needs a lower-case letter, an upper-case letter, a digit and a symbol", ErrWeakCredential)
	}
	return nil
}

// NormalizeName trims a display name and checks its length.
func NormalizeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return "", fmt.Errorf("%w: %s must be between %d and %d characters", ErrWeakCredential, field, minNameLength, maxNameLength)
	}
	return name, nil
}
