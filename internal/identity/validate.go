// ABOUTME: Client-equivalent form validation for registration and login
// ABOUTME: Rejects bad input before any store or network access

package identity

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Email pattern: ASCII local part of letters/digits/._%+-, then a domain
// with at least one dot. Matches what the signup forms accept.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// MinPasswordLength is the minimum accepted password length in runes.
const MinPasswordLength = 6

// ValidationError describes a per-field input rejection. These are caught
// before any provider call is made and are meant to be shown inline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidateEmail checks the email field. Returns nil when acceptable.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "email format is invalid"}
	}
	return nil
}

// ValidatePassword checks the password field. Returns nil when acceptable.
func ValidatePassword(password string) error {
	if password == "" {
		return &ValidationError{Field: "password", Reason: "password is required"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{
			Field:  "password",
			Reason: fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}
	}
	return nil
}

// validateCredentials runs both field checks and returns the first failure.
func validateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}
