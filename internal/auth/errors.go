package auth

import "errors"

var (
	// ErrAuthenticationFailure covers bad credentials and unknown roles alike.
	ErrAuthenticationFailure = errors.New("invalid login or password")

	// ErrSessionInvalid is reported when a session expired or was replayed from another client.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrCSRFRejected is reported when an anti-forgery token is missing, expired or wrong.
	ErrCSRFRejected = errors.New("csrf token rejected")
)
