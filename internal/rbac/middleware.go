package rbac

import (
	"log/slog"
	"net/http"

	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// Gate names used in logs and metrics.
const (
	GateRequest = "request"
	GateRender  = "render"
)

// Middleware wires the two enforcement points of the route policy.
type Middleware struct {
	Logger  *slog.Logger
	Metrics Recorder
}

// RequestGate runs before the session is loaded and only sees the user_role
// cookie. It turns away obviously wrong navigations early; RenderGate still
// runs once the session is hydrated.
func (m Middleware) RequestGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.enforce(w, r, next, GateRequest, CookieState(r))
	})
}

// RenderGate runs after session.Middleware and decides on the hydrated Store.
func (m Middleware) RenderGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.FromContext(r.Context())
		if store == nil {
			if m.Logger != nil {
				m.Logger.Error("render gate without session store", slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		m.enforce(w, r, next, GateRender, StoreState(store))
	})
}

func (m Middleware) enforce(w http.ResponseWriter, r *http.Request, next http.Handler, gate string, state AuthState) {
	decision := Decide(state, r.URL.Path)
	if decision.Allow {
		next.ServeHTTP(w, r)
		return
	}
	if m.Logger != nil {
		m.Logger.Debug("route gate redirect",
			slog.String("gate", gate),
			slog.String("path", r.URL.Path),
			slog.String("role", string(state.Role)),
			slog.String("target", decision.Redirect))
	}
	if m.Metrics != nil {
		m.Metrics.ObserveGateRedirect(gate, decision.Redirect)
	}
	http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
}

// CookieState derives AuthState from the role mirror cookie. Any non-empty
// value counts as logged in; an unknown value is later treated as guest.
func CookieState(r *http.Request) AuthState {
	cookie, err := r.Cookie(shared.RoleCookieName)
	if err != nil || cookie.Value == "" {
		return AuthState{}
	}
	role, _ := shared.ParseRole(cookie.Value)
	return AuthState{Authenticated: true, Role: role}
}

// StoreState derives AuthState from a hydrated session store.
func StoreState(store *session.Store) AuthState {
	if !store.Authenticated() {
		return AuthState{}
	}
	return AuthState{Authenticated: true, Role: store.Role()}
}
