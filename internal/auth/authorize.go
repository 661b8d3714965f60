package auth

import (
	"net/http"
	"slices"

	"github.com/carnet-scolaire/carnet/internal/store"
)

// Capability names a permission granted to a fixed set of roles.
type Capability string

const (
	CapManageAttendance  Capability = "manage_attendance"
	CapManageAssignments Capability = "manage_assignments"
	CapManageAgenda      Capability = "manage_agenda"
)

// capabilities is the single source of truth for who may do what.
var capabilities = map[Capability][]store.Role{
	CapManageAttendance:  {store.RoleAdmin, store.RoleTeacher, store.RoleSchoolStaff},
	CapManageAssignments: {store.RoleAdmin, store.RoleTeacher, store.RoleSchoolStaff},
	CapManageAgenda:      {store.RoleAdmin, store.RoleTeacher, store.RoleSchoolStaff},
}

// HasRole reports whether u is authenticated with role r.
func HasRole(u *store.User, r store.Role) bool {
	return u != nil && u.ID != 0 && u.Role == r
}

func IsAdmin(u *store.User) bool       { return HasRole(u, store.RoleAdmin) }
func IsTeacher(u *store.User) bool     { return HasRole(u, store.RoleTeacher) }
func IsStudent(u *store.User) bool     { return HasRole(u, store.RoleStudent) }
func IsParent(u *store.User) bool      { return HasRole(u, store.RoleParent) }
func IsSchoolStaff(u *store.User) bool { return HasRole(u, store.RoleSchoolStaff) }

// Can reports whether u holds capability c. Unknown capabilities are denied.
func Can(u *store.User, c Capability) bool {
	if u == nil || u.ID == 0 {
		return false
	}
	return slices.Contains(capabilities[c], u.Role)
}

func CanManageAttendance(u *store.User) bool  { return Can(u, CapManageAttendance) }
func CanManageAssignments(u *store.User) bool { return Can(u, CapManageAssignments) }
func CanManageAgenda(u *store.User) bool      { return Can(u, CapManageAgenda) }

// RequireCapability returns a middleware that requires the user in the
// request context to hold c. Must be used after the Guard middleware.
func RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Can(UserFromContext(r.Context()), c) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
