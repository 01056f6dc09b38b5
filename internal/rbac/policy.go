package rbac

import (
	"slices"
	"strings"

	"github.com/fingrupo/fingrupo/internal/shared"
)

var publicRoutes = []string{PathLogin, PathRegister}

// Infrastructure routes sit outside the page policy.
var bypassRoutes = []string{"/static/", "/healthz", "/metrics", "/logout"}

var roleRoutes = map[shared.Role][]string{
	shared.RoleGuest:  {PathDashboard, PathProfile},
	shared.RoleMember: {PathDashboard, PathProfile, PathMembers, PathPatrimonio, PathFinanceiro},
	shared.RoleAdmin:  {PathDashboard, PathProfile, PathMembers, PathInvites, PathPatrimonio, PathFinanceiro},
}

// Decide maps caller state and path to allow or redirect. Both gates call it,
// so they can only differ in the AuthState they feed in.
func Decide(state AuthState, path string) Decision {
	if matchesAny(path, bypassRoutes) {
		return Allowed
	}
	public := matchesAny(path, publicRoutes)
	if !state.Authenticated {
		if public {
			return Allowed
		}
		return RedirectTo(PathLogin)
	}
	role := effectiveRole(state.Role)
	if public {
		return RedirectTo(Home(role))
	}
	if matches(path, PathProfile) {
		return Allowed
	}
	if matchesAny(path, roleRoutes[role]) {
		return Allowed
	}
	return RedirectTo(Home(role))
}

// IsAllowed reports whether an authenticated caller with role may open path.
func IsAllowed(path string, role shared.Role) bool {
	return Decide(AuthState{Authenticated: true, Role: role}, path).Allow
}

// Home is where a role lands after login or a denied navigation. Guests get
// the dashboard too; it renders their invites and the group creation form.
func Home(role shared.Role) string {
	return PathDashboard
}

// Routes lists the page roots open to role, in navigation order.
func Routes(role shared.Role) []string {
	return slices.Clone(roleRoutes[effectiveRole(role)])
}

// effectiveRole treats a missing or unknown role as guest.
func effectiveRole(role shared.Role) shared.Role {
	if role.Valid() {
		return role
	}
	return shared.RoleGuest
}

// matches is prefix based: /members/12 is covered by /members.
func matches(path, route string) bool {
	return path == route || strings.HasPrefix(path, route)
}

func matchesAny(path string, routes []string) bool {
	for _, route := range routes {
		if matches(path, route) {
			return true
		}
	}
	return false
}
