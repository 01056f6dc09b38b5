// Package members lists the caller's group.
package members

import (
	"cmp"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

// Handler serves the members page. Leaving the group is posted to
// /members/quit, which the invites handler owns.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, templates: templates, csrf: csrf}
}

// MountRoutes registers the members routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(rbac.PathMembers, h.list)
}

// PageData is what pages/members.html renders.
type PageData struct {
	Members []api.Member
	Admins  int
	CanQuit bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	if store == nil || !store.Authenticated() {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	list, err := store.Client().Members(r.Context())
	if err != nil {
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		shared.AddFlash(r.Context(), shared.FlashError, httpx.UserMessage(err))
	}
	// Admins first, then by name.
	slices.SortStableFunc(list, func(a, b api.Member) int {
		if a.Role != b.Role {
			if a.Role == shared.RoleAdmin {
				return -1
			}
			if b.Role == shared.RoleAdmin {
				return 1
			}
		}
		return cmp.Compare(a.Name, b.Name)
	})
	data := PageData{Members: list, CanQuit: store.Role().Affiliated()}
	for _, m := range list {
		if m.Role == shared.RoleAdmin {
			data.Admins++
		}
	}
	h.templates.Page(w, h.logger, http.StatusOK, "pages/members.html", view.NewTemplateData(r, h.csrf, "Membros", data))
}
