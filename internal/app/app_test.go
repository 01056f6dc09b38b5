package app_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/api/apitest"
	"github.com/fingrupo/fingrupo/internal/app"
	"github.com/fingrupo/fingrupo/internal/observability"
	"github.com/fingrupo/fingrupo/internal/shared"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type fixture struct {
	api     *apitest.Server
	server  *httptest.Server
	metrics *observability.Metrics
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T, tweaks ...func(*app.Config)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	fake := apitest.New(t)
	metrics := observability.NewMetrics()
	cfg := &app.Config{
		AppEnv:                  "test",
		AppRequestTimeout:       5 * time.Second,
		APIBaseURL:              fake.URL,
		APITimeout:              5 * time.Second,
		SessionSecret:           "session-secret",
		SessionTTL:              time.Hour,
		SessionRefreshInterval:  time.Minute,
		CSRFSecret:              "csrf-secret",
		SubmissionTTL:           time.Minute,
		RateLimitPerMinute:      1000,
		LoginRateLimitPerMinute: 3,
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	handler, err := app.New(cfg, app.Deps{
		Redis:      redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Metrics:    metrics,
		HTTPClient: fake.Server.Client(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &fixture{api: fake, server: srv, metrics: metrics, redis: mr}
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (f *fixture) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: f.server.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp
}

// csrf loads page and returns the token rendered into its forms.
func (b *browser) csrf(page string) string {
	b.t.Helper()
	_, body := b.get(page)
	match := csrfPattern.FindStringSubmatch(body)
	require.Len(b.t, match, 2, "no csrf token on %s", page)
	return match[1]
}

func (b *browser) login(email string) {
	b.t.Helper()
	resp := b.post("/login", url.Values{
		"email":              {email},
		"senha":              {"secret123"},
		shared.CSRFFormField: {b.csrf("/login")},
	})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(b.t, "/dashboard", resp.Header.Get("Location"))
}

func (b *browser) setCookie(name, value string) {
	u, _ := url.Parse(b.base)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.browser(t).get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","redis":"ok"}`, body)

	f.redis.Close()
	resp, body = f.browser(t).get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, `"degraded"`)
}

func TestStaticAndMetricsBypassGates(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	resp, body := b.get("/static/js/app.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	assert.Contains(t, body, "addEventListener")

	resp, body = b.get("/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "fingrupo_http_requests_total")
	assert.Empty(t, b.cookie(app.SessionCookieName), "no session for infrastructure routes")
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)

	for _, path := range []string{"/", "/dashboard", "/financeiro", "/invites", "/profile"} {
		resp, _ := b.get(path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	resp, body := b.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<form")
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
}

func TestLoginMirrorsRoleAndGatesByRole(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser(apitest.User{Email: "ana@example.com", Nome: "Ana", Role: shared.RoleMember})
	b := f.browser(t)
	b.login("ana@example.com")
	assert.Equal(t, string(shared.RoleMember), b.cookie(shared.RoleCookieName))

	resp, body := b.get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Bem-vindo, Ana")
	assert.Contains(t, body, `href="/financeiro"`)
	assert.NotContains(t, body, `href="/invites"`, "members get no invites nav")

	resp, _ = b.get("/invites")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, _ = b.get("/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "logged in users skip the login page")
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestForgedRoleCookieIsCaughtByRenderGate(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser(apitest.User{Email: "guest@example.com"})
	b := f.browser(t)
	b.login("guest@example.com")
	b.setCookie(shared.RoleCookieName, string(shared.RoleAdmin))

	resp, _ := b.get("/invites")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `fingrupo_gate_redirects_total{gate="render",target="/dashboard"} 1`)
}

func TestStaleRoleCookieWithoutSessionGoesToLogin(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.setCookie(shared.RoleCookieName, string(shared.RoleAdmin))

	resp, _ := b.get("/invites")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, b.cookie(shared.RoleCookieName), "orphan role cookie is cleared")
}

func TestUnsafeMethodsRequireCSRF(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	b := f.browser(t)
	b.login("ana@example.com")

	resp := b.post("/patrimonio", url.Values{"nome": {"Casa"}, "valor_aquisicao": {"1"}, "valor_mercado": {"1"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, f.api.Assets())
}

func TestDuplicateSubmitThroughStack(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	b := f.browser(t)
	b.login("ana@example.com")

	form := url.Values{
		"nome":                      {"Casa"},
		"valor_aquisicao":           {"100"},
		"valor_mercado":             {"120"},
		shared.CSRFFormField:        {b.csrf("/patrimonio/new")},
		shared.IdempotencyFormField: {shared.NewKey()},
	}
	resp := b.post("/patrimonio", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body := b.get("/patrimonio")
	assert.Contains(t, body, "Patrimônio cadastrado")

	resp = b.post("/patrimonio", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, f.api.Assets())
	_, body = b.get("/patrimonio")
	assert.Contains(t, body, "Este formulário já foi enviado.")
}

func TestLogoutClearsSessionAndMirror(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	b := f.browser(t)
	b.login("ana@example.com")
	token := b.csrf("/profile")

	resp := b.post("/logout", url.Values{shared.CSRFFormField: {token}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, b.cookie(shared.RoleCookieName))

	resp, _ = b.get("/dashboard")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRevokedTokenLogsOut(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser(apitest.User{Email: "ana@example.com", Role: shared.RoleMember})
	b := f.browser(t)
	b.login("ana@example.com")
	f.api.RevokeTokens("ana@example.com")

	resp, _ := b.get("/financeiro")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = b.get("/dashboard")
	assert.Equal(t, "/login", resp.Header.Get("Location"), "session stays logged out")
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	token := b.csrf("/login")

	var last int
	for i := 0; i < 4; i++ {
		last = b.post("/login", url.Values{
			"email":              {"nobody@example.com"},
			"senha":              {"wrong"},
			shared.CSRFFormField: {token},
		}).StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
	assert.Equal(t, 3, f.api.Calls("POST /users/login"))
}

func TestThrottledRequestSkipsSession(t *testing.T) {
	f := newFixture(t, func(cfg *app.Config) { cfg.RateLimitPerMinute = 1 })
	b := f.browser(t)

	resp, _ := b.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Values("Set-Cookie"))
	keys := len(f.redis.Keys())

	resp, _ = b.get("/login")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Empty(t, resp.Header.Values("Set-Cookie"), "session middleware must not run")
	assert.Len(t, f.redis.Keys(), keys)
	assert.Zero(t, f.api.Calls("GET /users/role"))
}

func TestNewRequiresRedis(t *testing.T) {
	_, err := app.New(&app.Config{APIBaseURL: "http://api"}, app.Deps{})
	assert.Error(t, err)
	_, err = app.New(nil, app.Deps{})
	assert.True(t, err != nil && strings.Contains(err.Error(), "config"))
}
