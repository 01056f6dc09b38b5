package invites_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/api/apitest"
	"github.com/fingrupo/fingrupo/internal/invites"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/session/sessiontest"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	templates, err := view.NewEngine()
	require.NoError(t, err)
	guard := httpx.NewGuard(shared.NewIdempotencyStore(client, time.Minute), nil)
	r := chi.NewRouter()
	invites.NewHandler(nil, templates, shared.NewCSRFManager("secret"), guard).MountRoutes(r)
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func keyed(values url.Values) url.Values {
	values.Set(shared.IdempotencyFormField, shared.NewKey())
	return values
}

func TestAcceptEndpoint(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "admin@example.com", Role: shared.RoleAdmin})
	srv.AddUser(apitest.User{Email: "guest@example.com"})
	id := srv.AddInvite("admin@example.com", "guest@example.com", shared.RoleMember)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "guest@example.com", "secret123")
	router := newRouter(t)

	form := keyed(url.Values{})
	rr := serve(router, visitor.Request(http.MethodPost, "/dashboard/invites/"+itoa(id)+"/accept", form))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.Equal(t, "Convite aceito. Você agora é Membro", visitor.Flash())
	assert.Equal(t, shared.RoleMember, visitor.Store.Role())

	rr = serve(router, visitor.Request(http.MethodPost, "/dashboard/invites/"+itoa(id)+"/accept", form))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, httpx.MsgDuplicate, visitor.Flash())
	assert.Equal(t, 1, srv.Calls("POST /invites/accept/{id}"))
}

func TestDeclineConflictFlashesServerMessage(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "admin@example.com", Role: shared.RoleAdmin})
	srv.AddUser(apitest.User{Email: "guest@example.com"})
	id := srv.AddInvite("admin@example.com", "guest@example.com", shared.RoleMember)
	srv.SetInvite(id, false, false)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "guest@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/dashboard/invites/"+itoa(id)+"/decline", keyed(url.Values{})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.Equal(t, "Convite não está mais pendente", visitor.Flash())
}

func TestInvalidInviteID(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "guest@example.com"})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "guest@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/dashboard/invites/abc/accept", keyed(url.Values{})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Convite não encontrado", visitor.Flash())
}

func TestAcceptWithRevokedTokenGoesToLogin(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "admin@example.com", Role: shared.RoleAdmin})
	srv.AddUser(apitest.User{Email: "guest@example.com"})
	id := srv.AddInvite("admin@example.com", "guest@example.com", shared.RoleMember)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "guest@example.com", "secret123")
	srv.RevokeTokens("guest@example.com")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/dashboard/invites/"+itoa(id)+"/accept", keyed(url.Values{})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.False(t, visitor.Store.Authenticated())
	assert.Empty(t, visitor.Session.Token())
}

func TestInvitesPageAndSend(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "admin@example.com", Role: shared.RoleAdmin})
	srv.AddUser(apitest.User{Email: "friend@example.com"})
	srv.AddInvite("admin@example.com", "friend@example.com", shared.RoleMember)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "admin@example.com", "secret123")
	router := newRouter(t)

	rr := serve(router, visitor.Request(http.MethodGet, "/invites", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "friend@example.com")
	assert.Contains(t, rr.Body.String(), "Pendente")

	rr = serve(router, visitor.Request(http.MethodPost, "/invites", keyed(url.Values{"email": {"friend@example.com"}, "cargo": {"CONVIDADO"}})))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Cargo inválido")

	rr = serve(router, visitor.Request(http.MethodPost, "/invites", keyed(url.Values{"email": {"friend@example.com"}, "cargo": {"admin"}})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/invites", rr.Header().Get("Location"))
	assert.Equal(t, "Convite enviado para friend@example.com", visitor.Flash())
}

func TestRevokeEndpoint(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "admin@example.com", Role: shared.RoleAdmin})
	srv.AddUser(apitest.User{Email: "friend@example.com"})
	id := srv.AddInvite("admin@example.com", "friend@example.com", shared.RoleMember)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "admin@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/invites/"+itoa(id)+"/revoke", keyed(url.Values{})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Convite revogado", visitor.Flash())
	_, exists := srv.Invite(id)
	assert.False(t, exists)
}

func TestCreateGroupAndQuit(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "guest@example.com"})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "guest@example.com", "secret123")
	router := newRouter(t)

	rr := serve(router, visitor.Request(http.MethodPost, "/dashboard/groups", keyed(url.Values{"nome": {"Casa"}})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.Equal(t, shared.RoleAdmin, visitor.Store.Role())
	assert.Equal(t, "Grupo criado. Você agora é Administrador", visitor.Flash())

	rr = serve(router, visitor.Request(http.MethodPost, "/members/quit", keyed(url.Values{})))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.Equal(t, shared.RoleGuest, visitor.Store.Role())
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	srv := apitest.New(t)
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodGet, "/invites", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}
