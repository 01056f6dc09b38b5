package financeiro_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/api/apitest"
	"github.com/fingrupo/fingrupo/internal/financeiro"
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
	financeiro.NewHandler(nil, templates, shared.NewCSRFManager("secret"), guard).MountRoutes(r)
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestShowEntries(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	srv.AddEntry("ana@example.com", api.Income, "Salário março", 4200)
	srv.AddEntry("ana@example.com", api.Expense, "Mercado", 350.75)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodGet, "/financeiro", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Salário março")
	assert.Contains(t, body, "4.200,00")
	assert.Contains(t, body, "Mercado")
	assert.Contains(t, body, "350,75")
	assert.Contains(t, body, "3.849,25", "balance")
	assert.Contains(t, body, "Pets", "user categories are merged into the select")
	assert.Contains(t, body, "Alta", "expense priorities")
	assert.Contains(t, body, `action="/financeiro/saidas"`)
	assert.Contains(t, body, `action="/financeiro/entradas"`)
	assert.Zero(t, srv.Calls("GET /financeiro/{kind}/grupo"), "members do not load group entries")
}

func TestShowGroupEntriesForAdmin(t *testing.T) {
	srv := apitest.New(t)
	admin := srv.AddUser(apitest.User{Email: "admin@example.com", Role: shared.RoleAdmin})
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember, GroupID: admin.GroupID})
	srv.AddEntry("ana@example.com", api.Expense, "Conta de luz", 180)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "admin@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodGet, "/financeiro", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Conta de luz")
	assert.Equal(t, 2, srv.Calls("GET /financeiro/{kind}/grupo"), "one group list per kind")
}

func TestShowSoftFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	srv.AddEntry("ana@example.com", api.Income, "Freela", 900)
	srv.Fail(http.MethodGet, "/financeiro/saidas", http.StatusInternalServerError, "falhou")
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodGet, "/financeiro", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Freela", "incomes still render")
}

func TestCreateExpense(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")
	router := newRouter(t)

	form := url.Values{
		"nome":                      {"Aluguel"},
		"valor":                     {"1.250,00"},
		"id_categoria":              {"1"},
		"id_tipo":                   {"1"},
		"id_prioridade":             {"1"},
		"id_patrimonio":             {"0"},
		shared.IdempotencyFormField: {shared.NewKey()},
	}
	rr := serve(router, visitor.Request(http.MethodPost, "/financeiro/saidas", form))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/financeiro", rr.Header().Get("Location"))
	assert.Equal(t, "Saída registrada", visitor.Flash())
	assert.Equal(t, 1, srv.Entries(api.Expense))

	rr = serve(router, visitor.Request(http.MethodPost, "/financeiro/saidas", form))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, httpx.MsgDuplicate, visitor.Flash())
	assert.Equal(t, 1, srv.Entries(api.Expense), "double submit records one entry")
}

func TestCreateIncomeWithoutPriority(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/financeiro/entradas", url.Values{
		"nome":                      {"Salário"},
		"valor":                     {"5000"},
		"id_categoria":              {"1"},
		"id_tipo":                   {"2"},
		shared.IdempotencyFormField: {shared.NewKey()},
	}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Entrada registrada", visitor.Flash())
	assert.Equal(t, 1, srv.Entries(api.Income))
}

func TestCreateValidation(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/financeiro/saidas", url.Values{
		"nome":                      {""},
		"valor":                     {"muito"},
		"id_categoria":              {"1"},
		"id_tipo":                   {"1"},
		shared.IdempotencyFormField: {shared.NewKey()},
	}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Campo obrigatório")
	assert.Contains(t, body, "Valor inválido")
	assert.Contains(t, body, `value="muito"`)
	assert.Zero(t, srv.Entries(api.Expense))
}

func TestCreateUnknownKind(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")

	rr := serve(newRouter(t), visitor.Request(http.MethodPost, "/financeiro/investimentos", url.Values{
		"nome": {"x"}, "valor": {"1"},
	}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Tipo de lançamento inválido", visitor.Flash())
}

func TestDeleteEntry(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	id := srv.AddEntry("ana@example.com", api.Income, "Bônus", 800)
	visitor := sessiontest.LoggedIn(t, srv.APIClient(), "ana@example.com", "secret123")
	router := newRouter(t)

	rr := serve(router, visitor.Request(http.MethodPost, "/financeiro/entradas/"+strconv.FormatInt(id, 10)+"/delete", url.Values{
		shared.IdempotencyFormField: {shared.NewKey()},
	}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Entrada excluída", visitor.Flash())
	assert.Zero(t, srv.Entries(api.Income))

	rr = serve(router, visitor.Request(http.MethodPost, "/financeiro/entradas/"+strconv.FormatInt(id, 10)+"/delete", url.Values{
		shared.IdempotencyFormField: {shared.NewKey()},
	}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Registro não encontrado", visitor.Flash())
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	srv := apitest.New(t)
	visitor := sessiontest.Anonymous(t, srv.APIClient())

	rr := serve(newRouter(t), visitor.Request(http.MethodGet, "/financeiro", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}
