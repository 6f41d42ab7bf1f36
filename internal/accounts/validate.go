package accounts

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts up to 72 bytes of input.
	maxPasswordBytes  = 72
	maxUsernameLength = 150
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	if username == "" {
		return invalid("username", "username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return invalid("username", "username is too long")
	}
	for _, r := range username {
		if unicode.IsSpace(r) || r == '@' {
			return invalid("username", "username may not contain spaces or @")
		}
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "enter a valid email address")
	}
	return nil
}

func validatePasswords(field, password, confirm string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < minPasswordLength || !utf8.ValidString(password) {
		return invalid(field, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return invalid(field, "password is too long")
	}
	if password != confirm {
		return invalid(field, "passwords do not match")
	}
	return nil
}
