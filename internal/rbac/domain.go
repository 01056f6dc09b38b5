package rbac

import "github.com/fingrupo/fingrupo/internal/shared"

// Page roots guarded by the policy.
const (
	PathLogin      = "/login"
	PathRegister   = "/register"
	PathDashboard  = "/dashboard"
	PathProfile    = "/profile"
	PathMembers    = "/members"
	PathInvites    = "/invites"
	PathPatrimonio = "/patrimonio"
	PathFinanceiro = "/financeiro"
)

// AuthState is what an enforcement point knows about the caller.
type AuthState struct {
	Authenticated bool
	Role          shared.Role
}

// Decision is the outcome of Decide. Redirect is set only when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
}

// Allowed is the Decision that lets the request through.
var Allowed = Decision{Allow: true}

// RedirectTo denies the request in favour of target.
func RedirectTo(target string) Decision {
	return Decision{Redirect: target}
}

// Recorder observes gate redirects.
type Recorder interface {
	ObserveGateRedirect(gate, target string)
}
