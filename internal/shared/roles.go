package shared

import "strings"

// Role is the caller's standing inside a financial group, as reported by the API.
type Role string

// Roles known to the API. Anything else is rejected by ParseRole.
const (
	RoleGuest  Role = "CONVIDADO"
	RoleMember Role = "MEMBRO"
	RoleAdmin  Role = "ADMIN"
)

// RoleCookieName is the cookie mirroring the role for the request-time gate.
const RoleCookieName = "user_role"

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleGuest, RoleMember, RoleAdmin}
}

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleGuest:
		return RoleGuest, true
	case RoleMember:
		return RoleMember, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Affiliated reports whether the role belongs to a group member.
func (r Role) Affiliated() bool {
	return r == RoleMember || r == RoleAdmin
}

// Label returns the display name used across the UI.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrador"
	case RoleMember:
		return "Membro"
	case RoleGuest:
		return "Convidado"
	}
	return string(r)
}

func (r Role) String() string {
	return string(r)
}
