package store

import (
	"errors"
	"regexp"
)

var (
	// ErrLoginInvalid is returned when a login does not match the allowed pattern.
	ErrLoginInvalid = errors.New("login must be 1-100 characters of [A-Za-z0-9._@-]")

	// ErrPasswordHashEmpty is returned when an account is written without a hash.
	ErrPasswordHashEmpty = errors.New("password hash is required")

	loginRe = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,100}$`)
)

// ValidateLoginID checks the format of a login identifier. It does NOT check
// uniqueness; the unique index on each credential table does.
func ValidateLoginID(login string) error {
	if !loginRe.MatchString(login) {
		return ErrLoginInvalid
	}
	return nil
}
