package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/shared"
)

func TestDecideTable(t *testing.T) {
	guest := rbac.AuthState{Authenticated: true, Role: shared.RoleGuest}
	member := rbac.AuthState{Authenticated: true, Role: shared.RoleMember}
	admin := rbac.AuthState{Authenticated: true, Role: shared.RoleAdmin}
	anon := rbac.AuthState{}

	cases := []struct {
		name  string
		state rbac.AuthState
		path  string
		want  rbac.Decision
	}{
		{"anon login", anon, "/login", rbac.Allowed},
		{"anon register", anon, "/register", rbac.Allowed},
		{"anon dashboard", anon, "/dashboard", rbac.RedirectTo("/login")},
		{"anon profile", anon, "/profile", rbac.RedirectTo("/login")},
		{"anon root", anon, "/", rbac.RedirectTo("/login")},
		{"anon static", anon, "/static/css/app.css", rbac.Allowed},
		{"admin login", admin, "/login", rbac.RedirectTo("/dashboard")},
		{"guest register", guest, "/register", rbac.RedirectTo("/dashboard")},
		{"guest dashboard", guest, "/dashboard", rbac.Allowed},
		{"guest accept action", guest, "/dashboard/invites/5/accept", rbac.Allowed},
		{"guest profile", guest, "/profile", rbac.Allowed},
		{"guest members", guest, "/members", rbac.RedirectTo("/dashboard")},
		{"guest patrimonio", guest, "/patrimonio", rbac.RedirectTo("/dashboard")},
		{"member members prefix", member, "/members/123", rbac.Allowed},
		{"member financeiro", member, "/financeiro", rbac.Allowed},
		{"member invites", member, "/invites", rbac.RedirectTo("/dashboard")},
		{"admin invites", admin, "/invites", rbac.Allowed},
		{"admin revoke", admin, "/invites/9/revoke", rbac.Allowed},
		{"admin unknown", admin, "/documentos", rbac.RedirectTo("/dashboard")},
		{"empty role is guest", rbac.AuthState{Authenticated: true}, "/members", rbac.RedirectTo("/dashboard")},
		{"unknown role is guest", rbac.AuthState{Authenticated: true, Role: "membro"}, "/dashboard", rbac.Allowed},
		{"logout always", member, "/logout", rbac.Allowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rbac.Decide(tc.state, tc.path))
		})
	}
}

func TestProfileOpenToEveryRole(t *testing.T) {
	for _, role := range append(shared.Roles(), "") {
		assert.True(t, rbac.IsAllowed("/profile", role), "role %q", role)
		assert.True(t, rbac.IsAllowed("/profile/edit", role), "role %q", role)
	}
}

func TestHomeIsDashboard(t *testing.T) {
	for _, role := range shared.Roles() {
		assert.Equal(t, "/dashboard", rbac.Home(role))
		assert.True(t, rbac.IsAllowed(rbac.Home(role), role))
	}
}

func TestRoutesAreNested(t *testing.T) {
	guest := rbac.Routes(shared.RoleGuest)
	member := rbac.Routes(shared.RoleMember)
	admin := rbac.Routes(shared.RoleAdmin)
	assert.Subset(t, member, guest)
	assert.Subset(t, admin, member)
	assert.NotContains(t, member, rbac.PathInvites)
	assert.Contains(t, admin, rbac.PathInvites)
	assert.Equal(t, guest, rbac.Routes("unknown"))
}

func TestScenarioAcceptedInvitePromotesToMember(t *testing.T) {
	assert.False(t, rbac.IsAllowed("/members", shared.RoleGuest))
	assert.True(t, rbac.IsAllowed("/members", shared.RoleMember))
	assert.False(t, rbac.IsAllowed("/convites-admin-only", shared.RoleMember))
}

func TestScenarioUnauthenticatedDashboard(t *testing.T) {
	assert.Equal(t, rbac.RedirectTo("/login"), rbac.Decide(rbac.AuthState{}, "/dashboard"))
}

func TestScenarioAdminOnLogin(t *testing.T) {
	got := rbac.Decide(rbac.AuthState{Authenticated: true, Role: shared.RoleAdmin}, "/login")
	assert.Equal(t, rbac.RedirectTo("/dashboard"), got)
}

func TestScenarioQuitGroupLosesPatrimonio(t *testing.T) {
	assert.True(t, rbac.IsAllowed("/patrimonio", shared.RoleMember))
	assert.False(t, rbac.IsAllowed("/patrimonio", shared.RoleGuest))
	got := rbac.Decide(rbac.AuthState{Authenticated: true, Role: shared.RoleGuest}, "/patrimonio")
	assert.Equal(t, rbac.RedirectTo("/dashboard"), got)
}
