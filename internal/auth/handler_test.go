package auth_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/api/apitest"
	"github.com/fingrupo/fingrupo/internal/auth"
	"github.com/fingrupo/fingrupo/internal/session/sessiontest"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	r := chi.NewRouter()
	auth.NewHandler(nil, templates, nil, shared.NewCSRFManager("secret")).MountRoutes(r)
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestLoginPage(t *testing.T) {
	srv := apitest.New(t)
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<form")
	assert.Contains(t, rr.Body.String(), `name="csrf_token"`)
}

func TestLoginSuccess(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Nome: "Ana", Role: shared.RoleMember})
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/login", url.Values{
		"email": {"ana@example.com"},
		"senha": {"secret123"},
	}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.True(t, visitor.Store.Authenticated())
	assert.Equal(t, shared.RoleMember, visitor.Store.Role())
	assert.NotEmpty(t, visitor.Session.Token())
	assert.Equal(t, "Bem-vindo, Ana", visitor.Flash())
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com"})
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/login", url.Values{
		"email": {"ana@example.com"},
		"senha": {"wrongpass"},
	}))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Credenciais inválidas")
	assert.NotContains(t, rr.Body.String(), "wrongpass")
	assert.False(t, visitor.Store.Authenticated())
}

func TestLoginShowsAPIRejectionVerbatim(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com"})
	srv.Fail(http.MethodPost, "/users/login", http.StatusForbidden, "Conta bloqueada pelo administrador")
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/login", url.Values{
		"email": {"ana@example.com"},
		"senha": {"secret123"},
	}))
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Conta bloqueada pelo administrador")
	assert.NotContains(t, rr.Body.String(), "E-mail ou senha inválidos")
	assert.False(t, visitor.Store.Authenticated())
}

func TestLoginRejectionWithoutMessage(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com"})
	srv.Fail(http.MethodPost, "/users/login", http.StatusUnauthorized, "")
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/login", url.Values{
		"email": {"ana@example.com"},
		"senha": {"secret123"},
	}))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "E-mail ou senha inválidos")
}

func TestLoginValidation(t *testing.T) {
	srv := apitest.New(t)
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/login", url.Values{"email": {"nope"}}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "E-mail inválido")
	assert.Zero(t, srv.Calls("POST /users/login"))
}

func TestLoginWhenAPIDown(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com"})
	srv.Fail(http.MethodPost, "/users/login", http.StatusServiceUnavailable, "")
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/login", url.Values{
		"email": {"ana@example.com"},
		"senha": {"secret123"},
	}))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Serviço indisponível")
}

func registerValues(email string) url.Values {
	return url.Values{
		"nome":            {"Bruno"},
		"sobrenome":       {"Lima"},
		"cpf":             {"123.456.789-01"},
		"dthr_nascimento": {"1992-04-10"},
		"endereco":        {"Rua A, 1"},
		"email":           {email},
		"senha":           {"segredo1"},
	}
}

func TestRegisterLogsIn(t *testing.T) {
	srv := apitest.New(t)
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/register", registerValues("bruno@example.com")))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.True(t, visitor.Store.Authenticated())
	assert.Equal(t, shared.RoleGuest, visitor.Store.Role())

	user, ok := srv.User("bruno@example.com")
	require.True(t, ok)
	assert.Equal(t, "12345678901", user.CPF)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "bruno@example.com"})
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/register", registerValues("bruno@example.com")))
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Email já cadastrado")
	assert.False(t, visitor.Store.Authenticated())
}

func TestRegisterValidation(t *testing.T) {
	srv := apitest.New(t)
	visitor := sessiontest.Anonymous(t, srv.APIClient())
	values := registerValues("bruno@example.com")
	values.Set("senha", "123")
	values.Set("dthr_nascimento", "10/04/1992")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/register", values))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Mínimo de 6 caracteres")
	assert.Contains(t, rr.Body.String(), "Data inválida")
	assert.Zero(t, srv.Calls("POST /users"))
}

func TestLogout(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com"})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/logout", url.Values{}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.False(t, visitor.Store.Authenticated())
	assert.Empty(t, visitor.Session.Token())
}
