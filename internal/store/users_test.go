package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnet-scolaire/carnet/internal/dal"
	"github.com/carnet-scolaire/carnet/internal/store"
	"github.com/carnet-scolaire/carnet/internal/testutil"
)

func newCredentials(t *testing.T) *store.Credentials {
	t.Helper()
	db := dal.New(testutil.NewTestDB(t), dal.Config{Development: true})
	return store.NewCredentials(db)
}

func TestCredentials_CreateAndFind(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	u, err := s.Create(ctx, store.RoleStudent, store.Account{
		LoginID: "jdupont", PasswordHash: "$2a$10$hash", LastName: "Dupont", FirstName: "Jean", ClassName: "6B",
	})
	require.NoError(t, err)
	assert.Positive(t, u.ID)

	c, err := s.FindByLogin(ctx, store.RoleStudent, "jdupont")
	require.NoError(t, err)
	assert.Equal(t, u.ID, c.ID)
	assert.Equal(t, store.RoleStudent, c.Role)
	assert.Equal(t, "6B", c.ClassName)
	assert.Equal(t, "$2a$10$hash", c.PasswordHash)
	assert.Equal(t, "Jean Dupont", c.DisplayName())
}

func TestCredentials_RolesAreSeparate(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	_, err := s.Create(ctx, store.RoleTeacher, store.Account{LoginID: "mmartin", PasswordHash: "x", ClassName: "ignored"})
	require.NoError(t, err)

	c, err := s.FindByLogin(ctx, store.RoleTeacher, "mmartin")
	require.NoError(t, err)
	assert.Empty(t, c.ClassName)

	_, err = s.FindByLogin(ctx, store.RoleParent, "mmartin")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Same login under another role is a different account.
	_, err = s.Create(ctx, store.RoleParent, store.Account{LoginID: "mmartin", PasswordHash: "y"})
	assert.NoError(t, err)
}

func TestCredentials_DuplicateLogin(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	_, err := s.Create(ctx, store.RoleAdmin, store.Account{LoginID: "root", PasswordHash: "x"})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.RoleAdmin, store.Account{LoginID: "root", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrDuplicateLogin)
}

func TestCredentials_InvalidInput(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	_, err := s.FindByLogin(ctx, store.Role(0), "x")
	assert.ErrorIs(t, err, store.ErrInvalidRole)

	_, err = s.Create(ctx, store.Role(42), store.Account{LoginID: "x", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrInvalidRole)

	_, err = s.Create(ctx, store.RoleAdmin, store.Account{LoginID: "bad login", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrLoginInvalid)

	_, err = s.Create(ctx, store.RoleAdmin, store.Account{LoginID: "ok"})
	assert.ErrorIs(t, err, store.ErrPasswordHashEmpty)
}

func TestCredentials_UpdatePasswordHashAndList(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	b, err := s.Create(ctx, store.RoleSchoolStaff, store.Account{LoginID: "b", PasswordHash: "old"})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.RoleSchoolStaff, store.Account{LoginID: "a", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, s.UpdatePasswordHash(ctx, store.RoleSchoolStaff, b.ID, "new"))
	c, err := s.FindByLogin(ctx, store.RoleSchoolStaff, "b")
	require.NoError(t, err)
	assert.Equal(t, "new", c.PasswordHash)

	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, store.RoleSchoolStaff, 9999, "new"), store.ErrNotFound)

	users, err := s.List(ctx, store.RoleSchoolStaff)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a", users[0].LoginID)
	assert.Equal(t, "b", users[1].LoginID)
}

func TestCredentials_ThroughInterface(t *testing.T) {
	var s store.CredentialStoreIface = newCredentials(t)
	ctx := context.Background()

	u, err := s.Create(ctx, store.RoleParent, store.Account{LoginID: "pdupont", PasswordHash: "$2a$10$old"})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePasswordHash(ctx, store.RoleParent, u.ID, "$2a$10$new"))

	c, err := s.FindByLogin(ctx, store.RoleParent, "pdupont")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$new", c.PasswordHash)

	users, err := s.List(ctx, store.RoleParent)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "pdupont", users[0].LoginID)
}
