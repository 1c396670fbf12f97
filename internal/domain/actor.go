package domain

import "fmt"

type Role string

const (
	RolePatient      Role = "patient"
	RoleReceptionist Role = "receptionist"
	RoleAudiologist  Role = "audiologist"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleReceptionist, RoleAudiologist, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether the role belongs to clinic personnel.
func (r Role) Staff() bool {
	return r == RoleReceptionist || r == RoleAudiologist || r == RoleAdmin
}

// Actor identifies the caller of a core operation. Authentication happens
// outside the core; the core only checks role and ownership.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%d", a.Role, a.UserID)
}

// Forbid returns an ErrForbidden describing the refused action.
func Forbid(a Actor, action string) error {
	return fmt.Errorf("%s may not %s: %w", a, action, ErrForbidden)
}

// RequireStaff fails with ErrForbidden unless a is clinic staff.
func RequireStaff(a Actor, action string) error {
	if !a.Role.Staff() {
		return Forbid(a, action)
	}
	return nil
}

// RequireRole fails with ErrForbidden unless a holds one of roles.
func RequireRole(a Actor, action string, roles ...Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return Forbid(a, action)
}
