package view

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingrupo/fingrupo/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestEveryPageRenders(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	pages := []string{
		"pages/login.html", "pages/register.html", "pages/dashboard.html", "pages/profile.html",
		"pages/members.html", "pages/invites.html", "pages/patrimonio.html",
		"pages/patrimonio_detail.html", "pages/patrimonio_form.html", "pages/financeiro.html",
	}
	for _, page := range pages {
		rec := httptest.NewRecorder()
		err := engine.Render(rec, page, TemplateData{Title: "t", Role: shared.RoleAdmin, Nav: Nav(shared.RoleAdmin, "/dashboard")})
		require.NoError(t, err, page)
		assert.Contains(t, rec.Body.String(), "</html>", page)
	}
}

func TestFormatCurrency(t *testing.T) {
	got := FormatCurrency(1234.5)
	assert.True(t, strings.HasPrefix(got, "R$"), got)
	assert.Contains(t, got, "1.234,50")
	assert.Equal(t, "negative", SignClass(-3.0))
	assert.Equal(t, "neutral", SignClass("x"))
}

func TestNavFollowsRole(t *testing.T) {
	guest := Nav(shared.RoleGuest, "/profile")
	require.Len(t, guest, 2)
	assert.Equal(t, "Perfil", guest[1].Label)
	assert.True(t, guest[1].Active)

	admin := Nav(shared.RoleAdmin, "/invites")
	labels := make([]string, 0, len(admin))
	for _, item := range admin {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"Dashboard", "Perfil", "Membros", "Convites", "Patrimônios", "Financeiro"}, labels)
}

func TestNewTemplateDataPopsFlash(t *testing.T) {
	sess := shared.NewSession()
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "ok"})
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req = req.WithContext(shared.ContextWithSession(context.Background(), sess))

	td := NewTemplateData(req, shared.NewCSRFManager("secret"), "Entrar", nil)
	require.NotNil(t, td.Flash)
	assert.Equal(t, "ok", td.Flash.Message)
	assert.NotEmpty(t, td.CSRFToken)
	assert.Empty(t, td.Nav)
	assert.Nil(t, sess.PopFlash())
}
