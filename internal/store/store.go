// Package store holds the account model and the credential gateway, the
// only code that knows which table backs which role.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRole is returned when a role has no backing table.
	ErrInvalidRole = errors.New("invalid role")

	// ErrDuplicateLogin is returned when creating an account whose login is already taken for that role.
	ErrDuplicateLogin = errors.New("login is already taken")
)

// CredentialStoreIface exposes credential lookups and account management.
// Authentication code depends on this interface, never on the tables.
type CredentialStoreIface interface {
	FindByLogin(ctx context.Context, role Role, loginID string) (*Credential, error)
	Create(ctx context.Context, role Role, a Account) (*User, error)
	UpdatePasswordHash(ctx context.Context, role Role, id int64, hash string) error
	List(ctx context.Context, role Role) ([]*User, error)
}
