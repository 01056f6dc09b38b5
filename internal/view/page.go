package view

import (
	"net/http"
	"strings"

	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// NavItem is one entry of the sidebar.
type NavItem struct {
	Href   string
	Label  string
	Active bool
}

var navLabels = map[string]string{
	rbac.PathDashboard:  "Dashboard",
	rbac.PathProfile:    "Perfil",
	rbac.PathMembers:    "Membros",
	rbac.PathInvites:    "Convites",
	rbac.PathPatrimonio: "Patrimônios",
	rbac.PathFinanceiro: "Financeiro",
}

// Nav builds the navigation for role, marking the entry that covers path.
func Nav(role shared.Role, path string) []NavItem {
	routes := rbac.Routes(role)
	items := make([]NavItem, 0, len(routes))
	for _, route := range routes {
		items = append(items, NavItem{
			Href:   route,
			Label:  navLabels[route],
			Active: path == route || strings.HasPrefix(path, route+"/"),
		})
	}
	return items
}

// NewTemplateData assembles what every layout needs: CSRF token, the pending
// flash and, for logged in users, name, role and navigation.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if sess := shared.SessionFromContext(ctx); sess != nil {
		if csrf != nil {
			td.CSRFToken, _ = csrf.EnsureToken(ctx, sess)
		}
		td.Flash = sess.PopFlash()
	}
	if store := session.FromContext(ctx); store != nil && store.Authenticated() {
		if user, ok := store.User(); ok {
			td.UserName = user.FullName()
		}
		td.Role = store.Role()
		td.Nav = Nav(td.Role, r.URL.Path)
	}
	return td
}
