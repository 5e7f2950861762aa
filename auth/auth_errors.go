package auth

import "errors"

var (
	// InvalidCredentialFormatErr rejects malformed input before any
	// directory lookup happens.
	InvalidCredentialFormatErr = errors.New("invalid email or password format")

	// InvalidCredentialsErr deliberately covers unknown user, wrong password
	// and inactive account alike, to avoid account enumeration.
	InvalidCredentialsErr = errors.New("invalid credentials")

	MissingRefreshTokenErr = errors.New("missing refresh token")
	InvalidRefreshTokenErr = errors.New("invalid refresh token")
	SessionTooOldErr       = errors.New("session exceeded maximum age")
	CSRFMismatchErr        = errors.New("csrf token missing or mismatched")
)
