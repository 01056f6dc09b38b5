package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// cachedState is a State holding a fresh snapshot, so Initialize never
// reaches the network.
type cachedState struct {
	token  string
	snap   *session.Snapshot
	mirror string
}

func (s *cachedState) Token() string         { return s.token }
func (s *cachedState) SetToken(token string) { s.token = token }
func (s *cachedState) ClearToken()           { s.token = "" }
func (s *cachedState) Snapshot() (session.Snapshot, bool) {
	if s.snap == nil {
		return session.Snapshot{}, false
	}
	return *s.snap, true
}
func (s *cachedState) SetSnapshot(snap session.Snapshot) { s.snap = &snap }
func (s *cachedState) ClearSnapshot()                    { s.snap = nil }
func (s *cachedState) MirroredRole() string              { return s.mirror }
func (s *cachedState) MirrorRole(role shared.Role)       { s.mirror = string(role) }
func (s *cachedState) ClearRoleMirror()                  { s.mirror = "" }

type redirectCounter struct {
	byGate map[string]int
}

func (c *redirectCounter) ObserveGateRedirect(gate, target string) {
	c.byGate[gate]++
}

func hydratedStore(t *testing.T, state rbac.AuthState) *session.Store {
	t.Helper()
	st := &cachedState{}
	if state.Authenticated {
		var profile api.Profile
		profile.User.ID = 1
		st.token = "opaque"
		st.snap = &session.Snapshot{User: profile, Role: state.Role, ResolvedAt: time.Now()}
		st.mirror = string(state.Role)
	}
	store := session.New(api.NewClient("http://127.0.0.1:1"), st, session.Options{})
	store.Initialize(context.Background())
	require.Equal(t, state.Authenticated, store.Authenticated())
	return store
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func outcome(rec *httptest.ResponseRecorder) rbac.Decision {
	if rec.Code == http.StatusOK {
		return rbac.Allowed
	}
	return rbac.RedirectTo(rec.Header().Get("Location"))
}

func TestGatesAgreeOnEveryPathAndRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	m := rbac.Middleware{}
	requestGate := m.RequestGate(ok)
	renderGate := m.RenderGate(ok)

	states := []rbac.AuthState{
		{},
		{Authenticated: true, Role: shared.RoleGuest},
		{Authenticated: true, Role: shared.RoleMember},
		{Authenticated: true, Role: shared.RoleAdmin},
	}
	paths := []string{
		"/", "/login", "/register", "/dashboard", "/dashboard/groups", "/profile", "/members",
		"/members/quit", "/invites", "/invites/3/revoke", "/patrimonio", "/patrimonio/7/edit",
		"/financeiro", "/financeiro/saidas/4/delete", "/documentos", "/admin/users", "/logout",
	}

	for _, state := range states {
		store := hydratedStore(t, state)
		for _, path := range paths {
			want := rbac.Decide(state, path)

			req := httptest.NewRequest(http.MethodGet, path, nil)
			if state.Authenticated {
				req.AddCookie(&http.Cookie{Name: shared.RoleCookieName, Value: string(state.Role)})
			}
			fromCookie := outcome(serve(requestGate, req))

			req = httptest.NewRequest(http.MethodGet, path, nil)
			req = req.WithContext(session.ContextWithStore(req.Context(), store))
			fromStore := outcome(serve(renderGate, req))

			assert.Equal(t, want, fromCookie, "request gate %+v %s", state, path)
			assert.Equal(t, want, fromStore, "render gate %+v %s", state, path)
		}
	}
}

func TestRequestGateRedirectsWithSeeOther(t *testing.T) {
	counter := &redirectCounter{byGate: map[string]int{}}
	m := rbac.Middleware{Metrics: counter}
	h := m.RequestGate(http.NotFoundHandler())

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/members/quit", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 1, counter.byGate[rbac.GateRequest])
}

func TestRenderGateWithoutStore(t *testing.T) {
	h := rbac.Middleware{}.RenderGate(http.NotFoundHandler())
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownCookieRoleActsAsGuest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	req.AddCookie(&http.Cookie{Name: shared.RoleCookieName, Value: "membro"})
	state := rbac.CookieState(req)
	assert.True(t, state.Authenticated)
	assert.Equal(t, rbac.RedirectTo("/dashboard"), rbac.Decide(state, "/members"))
}
