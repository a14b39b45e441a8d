package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// MinAdminPasswordLength is the minimum length of the super-admin password
const MinAdminPasswordLength = 12

var ErrInvalidEmail = errors.New("invalid email address")

// NormalizeEmail lowercases and trims an email address, validating its form.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

// ValidatePassword enforces length bounds and rejects trivially weak
// passwords. No character class rules are applied.
func ValidatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = MinAdminPasswordLength
	}
	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters long", minLength)
	}
	if len(password) > 128 {
		return fmt.Errorf("password must be at most 128 characters long")
	}
	if isRepeatingChar(password) {
		return fmt.Errorf("password cannot be a single repeating character")
	}
	switch strings.ToLower(password) {
	case "password1234", "123456789012", "qwertyuiopas", "adminadmin12":
		return fmt.Errorf("password is too common")
	}
	return nil
}

func isRepeatingChar(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}
