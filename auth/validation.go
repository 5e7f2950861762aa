package auth

import (
	"regexp"

	"github.com/pkg/errors"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmailFormat checks the basic shape of an email address. It is a
// gate against junk input, not a full RFC 5322 validation.
func ValidateEmailFormat(email string) error {
	if email == "" {
		return errors.Wrap(InvalidCredentialFormatErr, "email is required")
	}
	if !emailPattern.MatchString(email) {
		return errors.Wrap(InvalidCredentialFormatErr, "email format")
	}
	return nil
}

// ValidatePasswordFormat enforces the minimum length. Full strength rules
// apply at registration, not at login.
func ValidatePasswordFormat(password string) error {
	if len(password) < minPasswordLength {
		return errors.Wrapf(InvalidCredentialFormatErr, "password shorter than %d characters", minPasswordLength)
	}
	return nil
}

// ValidateLoginInput runs both format checks. Callers must reject on error
// before touching the user directory.
func ValidateLoginInput(email, password string) error {
	if err := ValidateEmailFormat(email); err != nil {
		return err
	}
	return ValidatePasswordFormat(password)
}
