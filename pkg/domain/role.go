package domain

// Role is the set of access roles recognized by the system. Stored and
// exposed as stable wire strings.
type Role string

const (
	RoleVendor           Role = "vendor"
	RoleDistrictVerifier Role = "district_verifier"
	RoleHQAdmin          Role = "hq_admin"
	RoleSuperAdmin       Role = "super_admin"
)

// ParseRole validates a wire role string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleVendor, RoleDistrictVerifier, RoleHQAdmin, RoleSuperAdmin:
		return Role(s), true
	}
	return "", false
}

// IsAdmin reports whether the role bypasses district scoping.
func (r Role) IsAdmin() bool {
	return r == RoleHQAdmin || r == RoleSuperAdmin
}

func (r Role) String() string { return string(r) }

// Actor is the authenticated caller as seen by services and policy checks.
// District is only populated for district verifiers.
type Actor struct {
	ID       UserID
	Username string
	Role     Role
	District string
}

// IsZero reports whether the actor carries no authenticated identity.
func (a Actor) IsZero() bool { return a.ID.IsNil() }
