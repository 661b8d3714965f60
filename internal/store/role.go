package store

import (
	"fmt"
	"strings"

	"github.com/carnet-scolaire/carnet/internal/dal"
)

// Role is the closed set of principal kinds. The zero value is not a role.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleTeacher
	RoleStudent
	RoleParent
	RoleSchoolStaff
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleParent, RoleSchoolStaff}

var (
	tableAdmins   = dal.MustIdentifier("admins")
	tableTeachers = dal.MustIdentifier("teachers")
	tableStudents = dal.MustIdentifier("students")
	tableParents  = dal.MustIdentifier("parents")
	tableStaff    = dal.MustIdentifier("staff")
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	case RoleParent:
		return "parent"
	case RoleSchoolStaff:
		return "school_staff"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := r.Table()
	return ok
}

// Table returns the credential table backing r.
func (r Role) Table() (dal.Identifier, bool) {
	switch r {
	case RoleAdmin:
		return tableAdmins, true
	case RoleTeacher:
		return tableTeachers, true
	case RoleStudent:
		return tableStudents, true
	case RoleParent:
		return tableParents, true
	case RoleSchoolStaff:
		return tableStaff, true
	}
	return dal.Identifier{}, false
}

// ParseRole accepts the String form of a role, case-insensitively. "staff"
// is accepted for RoleSchoolStaff.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "teacher":
		return RoleTeacher, nil
	case "student":
		return RoleStudent, nil
	case "parent":
		return RoleParent, nil
	case "school_staff", "staff":
		return RoleSchoolStaff, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}
