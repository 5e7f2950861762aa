package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/pkg/errors"
)

const csrfTokenLength = 32 // 256 bits

// GenerateCSRFToken returns a fresh random nonce. Tokens are reissued, never
// refreshed in place.
func GenerateCSRFToken() (string, error) {
	bytes := make([]byte, csrfTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "[GenerateCSRFToken] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ValidateCSRFToken compares the cookie-stored nonce with the client-supplied
// echo. Comparison is constant-time. Both values must be present.
func ValidateCSRFToken(cookieValue, supplied string) error {
	if cookieValue == "" || supplied == "" {
		return CSRFMismatchErr
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(supplied)) != 1 {
		return CSRFMismatchErr
	}
	return nil
}
