// Package dashboard serves the landing page. Guests see the invites addressed
// to them and the group creation form; members and admins see their totals and
// latest entries.
package dashboard

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/invites"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

const recentLimit = 5

// Handler renders the dashboard.
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

// MountRoutes registers the dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.redirectHome)
	r.Get(rbac.PathDashboard, h.show)
}

// PageData is what pages/dashboard.html renders.
type PageData struct {
	Guest    bool
	Admin    bool
	Invites  []api.Invite
	Summary  api.Metadata
	Incomes  []api.Entry
	Expenses []api.Entry
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	if store == nil || !store.Authenticated() {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	httpx.Redirect(w, r, rbac.Home(store.Role()))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	if store == nil || !store.Authenticated() {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	role := store.Role()
	data := PageData{Guest: !role.Affiliated(), Admin: role == shared.RoleAdmin}

	var err error
	if data.Guest {
		ctrl := invites.NewController(store.Client(), store, h.logger)
		data.Invites, err = ctrl.ListReceived(r.Context())
	} else {
		err = h.loadSummary(r.Context(), store.Client(), &data)
	}
	if err != nil {
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		shared.AddFlash(r.Context(), shared.FlashError, httpx.UserMessage(err))
	}
	h.templates.Page(w, h.logger, http.StatusOK, "pages/dashboard.html", view.NewTemplateData(r, h.csrf, "Dashboard", data))
}

// loadSummary fetches totals and both entry lists concurrently. A failed load
// does not cancel the others; the first error is returned once all finish.
func (h *Handler) loadSummary(ctx context.Context, client *api.Client, data *PageData) error {
	var g errgroup.Group
	g.Go(func() error {
		summary, err := client.Metadata(ctx)
		data.Summary = summary
		return err
	})
	g.Go(func() error {
		list, err := client.Entries(ctx, api.Income)
		data.Incomes = latest(list)
		return err
	})
	g.Go(func() error {
		list, err := client.Entries(ctx, api.Expense)
		data.Expenses = latest(list)
		return err
	})
	return g.Wait()
}

func latest(list []api.Entry) []api.Entry {
	slices.SortStableFunc(list, func(a, b api.Entry) int {
		return cmp.Compare(b.CreatedAt.Time.UnixNano(), a.CreatedAt.Time.UnixNano())
	})
	if len(list) > recentLimit {
		list = list[:recentLimit]
	}
	return list
}
