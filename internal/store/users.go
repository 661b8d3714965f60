package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carnet-scolaire/carnet/internal/dal"
)

// User is an authenticated principal as kept in the session.
type User struct {
	ID        int64
	Role      Role
	LoginID   string
	LastName  string
	FirstName string
	ClassName string // students only
}

// DisplayName returns "First Last", or the login when both are empty.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.LoginID
	}
	return name
}

// Credential is a User together with its stored password hash. It never
// leaves the authentication path.
type Credential struct {
	User
	PasswordHash string
}

// Account holds the fields needed to create a credential row.
type Account struct {
	LoginID      string
	PasswordHash string
	LastName     string
	FirstName    string
	ClassName    string
}

type credentialRow struct {
	ID           int64          `db:"id"`
	Login        string         `db:"login"`
	PasswordHash string         `db:"password_hash"`
	LastName     string         `db:"last_name"`
	FirstName    string         `db:"first_name"`
	ClassName    sql.NullString `db:"class_name"`
}

func (r credentialRow) user(role Role) User {
	return User{
		ID:        r.ID,
		Role:      role,
		LoginID:   r.Login,
		LastName:  r.LastName,
		FirstName: r.FirstName,
		ClassName: r.ClassName.String,
	}
}

// Credentials reads and writes the per-role credential tables through the DAL.
type Credentials struct {
	db *dal.DB
}

var _ CredentialStoreIface = (*Credentials)(nil)

func NewCredentials(db *dal.DB) *Credentials {
	return &Credentials{db: db}
}

func columns(role Role) string {
	if role == RoleStudent {
		return "id, login, password_hash, last_name, first_name, class_name"
	}
	return "id, login, password_hash, last_name, first_name, '' AS class_name"
}

// FindByLogin returns the credential for loginID in role's table, or ErrNotFound.
func (s *Credentials) FindByLogin(ctx context.Context, role Role, loginID string) (*Credential, error) {
	table, ok := role.Table()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	var row credentialRow
	err := s.db.HandleFor(ctx).Get(ctx, &row,
		`SELECT `+columns(role)+` FROM `+table.String()+` WHERE login = ?`, loginID)
	if errors.Is(err, dal.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Credential{User: row.user(role), PasswordHash: row.PasswordHash}, nil
}

// Create inserts a new account for role and returns it.
func (s *Credentials) Create(ctx context.Context, role Role, a Account) (*User, error) {
	table, ok := role.Table()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if err := ValidateLoginID(a.LoginID); err != nil {
		return nil, err
	}
	if a.PasswordHash == "" {
		return nil, ErrPasswordHashEmpty
	}

	h := s.db.HandleFor(ctx)
	if _, err := s.FindByLogin(ctx, role, a.LoginID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateLogin, a.LoginID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	fields := map[string]any{
		"login":         a.LoginID,
		"password_hash": a.PasswordHash,
		"last_name":     a.LastName,
		"first_name":    a.FirstName,
	}
	if role == RoleStudent {
		fields["class_name"] = a.ClassName
	}
	id, err := h.Insert(ctx, table.String(), fields)
	if err != nil {
		return nil, err
	}
	u := &User{ID: id, Role: role, LoginID: a.LoginID, LastName: a.LastName, FirstName: a.FirstName}
	if role == RoleStudent {
		u.ClassName = a.ClassName
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored hash of account id.
func (s *Credentials) UpdatePasswordHash(ctx context.Context, role Role, id int64, hash string) error {
	table, ok := role.Table()
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if hash == "" {
		return ErrPasswordHashEmpty
	}
	n, err := s.db.HandleFor(ctx).Update(ctx, table.String(), map[string]any{"password_hash": hash}, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every account of role ordered by login.
func (s *Credentials) List(ctx context.Context, role Role) ([]*User, error) {
	table, ok := role.Table()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	var rows []credentialRow
	err := s.db.HandleFor(ctx).Select(ctx, &rows,
		`SELECT `+columns(role)+` FROM `+table.String()+` ORDER BY login ASC`)
	if err != nil {
		return nil, err
	}
	users := make([]*User, len(rows))
	for i, r := range rows {
		u := r.user(role)
		users[i] = &u
	}
	return users, nil
}
