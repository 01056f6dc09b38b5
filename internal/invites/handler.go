package invites

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

// Form key scopes for the submission guard.
const (
	moduleRespond = "invites.respond"
	moduleSend    = "invites.send"
	moduleRevoke  = "invites.revoke"
	moduleGroup   = "groups"
)

// Handler wires the invite and group membership endpoints.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *httpx.Guard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, guard *httpx.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, templates: templates, csrf: csrf, guard: guard}
}

// MountRoutes registers routes. Guest actions hang off /dashboard and member
// actions off /members so the route gate covers them with the page they
// belong to.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/dashboard/invites/{id}/accept", h.handleAccept)
	r.Post("/dashboard/invites/{id}/decline", h.handleDecline)
	r.Post("/dashboard/groups", h.handleCreateGroup)
	r.Post("/members/quit", h.handleQuit)

	r.Get("/invites", h.showInvites)
	r.Post("/invites", h.handleSend)
	r.Post("/invites/{id}/revoke", h.handleRevoke)
}

// ControllerFor builds a Controller bound to the request's session.
func ControllerFor(r *http.Request, logger *slog.Logger) (*Controller, bool) {
	store := session.FromContext(r.Context())
	if store == nil || !store.Authenticated() {
		return nil, false
	}
	return NewController(store.Client(), store, logger), true
}

type sendFormView struct {
	Email string
	Cargo string
}

type invitesPageData struct {
	Sent   []api.Invite
	Form   sendFormView
	Cargos []shared.Role
	Error  string
}

func (h *Handler) showInvites(w http.ResponseWriter, r *http.Request) {
	h.renderInvites(w, r, http.StatusOK, sendFormView{Cargo: string(shared.RoleMember)}, "")
}

func (h *Handler) renderInvites(w http.ResponseWriter, r *http.Request, status int, form sendFormView, formErr string) {
	ctrl, ok := ControllerFor(r, h.logger)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	sent, err := ctrl.ListSent(r.Context())
	if err != nil {
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		shared.AddFlash(r.Context(), shared.FlashError, httpx.UserMessage(err))
	}
	data := invitesPageData{
		Sent:   sent,
		Form:   form,
		Cargos: []shared.Role{shared.RoleMember, shared.RoleAdmin},
		Error:  formErr,
	}
	h.templates.Page(w, h.logger, status, "pages/invites.html", view.NewTemplateData(r, h.csrf, "Convites", data))
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctrl, ok := ControllerFor(r, h.logger)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	form := sendFormView{
		Email: strings.TrimSpace(r.PostFormValue("email")),
		Cargo: strings.ToUpper(strings.TrimSpace(r.PostFormValue("cargo"))),
	}
	claim, err := h.guard.Claim(r, moduleSend)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathInvites)
		return
	}
	if err := ctrl.Send(r.Context(), form.Email, shared.Role(form.Cargo)); err != nil {
		claim.Release(r.Context())
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		h.renderInvites(w, r, httpx.StatusFor(err), form, httpx.UserMessage(err))
		return
	}
	httpx.Succeed(w, r, "Convite enviado para "+form.Email, rbac.PathInvites)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, moduleRevoke, rbac.PathInvites, func(ctrl *Controller, id int64) (string, error) {
		return "Convite revogado", ctrl.Revoke(r.Context(), id)
	})
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, moduleRespond, rbac.PathDashboard, func(ctrl *Controller, id int64) (string, error) {
		role, err := ctrl.Accept(r.Context(), id)
		return "Convite aceito. Você agora é " + role.Label(), err
	})
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, moduleRespond, rbac.PathDashboard, func(ctrl *Controller, id int64) (string, error) {
		_, err := ctrl.Decline(r.Context(), id)
		return "Convite recusado", err
	})
}

// act runs an action on the invite named in the URL and answers with a
// flash and a redirect to back.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, module, back string, fn func(*Controller, int64) (string, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, r, h.logger, ErrInviteNotFound, back)
		return
	}
	ctrl, ok := ControllerFor(r, h.logger)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	claim, err := h.guard.Claim(r, module)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, back)
		return
	}
	msg, err := fn(ctrl, id)
	if err != nil {
		claim.Release(r.Context())
		httpx.Fail(w, r, h.logger, err, back)
		return
	}
	httpx.Succeed(w, r, msg, back)
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctrl, ok := ControllerFor(r, h.logger)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	claim, err := h.guard.Claim(r, moduleGroup)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathDashboard)
		return
	}
	role, err := ctrl.CreateOrganization(r.Context(), r.PostFormValue("nome"))
	if err != nil {
		claim.Release(r.Context())
		httpx.Fail(w, r, h.logger, err, rbac.PathDashboard)
		return
	}
	httpx.Succeed(w, r, "Grupo criado. Você agora é "+role.Label(), rbac.Home(role))
}

func (h *Handler) handleQuit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctrl, ok := ControllerFor(r, h.logger)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	claim, err := h.guard.Claim(r, moduleGroup)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathMembers)
		return
	}
	role, err := ctrl.QuitGroup(r.Context())
	if err != nil {
		claim.Release(r.Context())
		httpx.Fail(w, r, h.logger, err, rbac.PathMembers)
		return
	}
	httpx.Succeed(w, r, "Você saiu do grupo", rbac.Home(role))
}
