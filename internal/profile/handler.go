// Package profile lets the logged in user view and edit their account.
package profile

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/rbac"
	"github.com/fingrupo/fingrupo/internal/session"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

const moduleProfile = "profile"

// Handler serves /profile.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *httpx.Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, guard *httpx.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		validator: httpx.NewValidator(),
	}
}

// MountRoutes registers the profile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(rbac.PathProfile, h.show)
	r.Post(rbac.PathProfile, h.update)
}

// Form mirrors the editable profile fields. An empty password leaves the
// current one in place.
type Form struct {
	Nome           string `form:"nome" validate:"required,max=100"`
	Sobrenome      string `form:"sobrenome" validate:"max=100"`
	DataNascimento string `form:"dthr_nascimento" validate:"omitempty,datetime=2006-01-02"`
	Endereco       string `form:"endereco" validate:"max=255"`
	Email          string `form:"email" validate:"required,email"`
	Senha          string `form:"senha" validate:"omitempty,min=6"`
	Confirmacao    string `form:"senha_confirmacao" validate:"eqfield=Senha"`
}

// PageData is what pages/profile.html renders.
type PageData struct {
	Form   Form
	CPF    string
	Role   shared.Role
	Errors map[string]string
}

func formFrom(p api.Profile) Form {
	f := Form{
		Nome:      p.User.Nome,
		Sobrenome: p.User.Sobrenome,
		Endereco:  p.Address(),
		Email:     p.UserInfo.Email,
	}
	if !p.User.DataNascimento.IsZero() {
		f.DataNascimento = p.User.DataNascimento.Format("2006-01-02")
	}
	return f
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	user, ok := userOf(store)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}
	h.render(w, r, http.StatusOK, PageData{Form: formFrom(user), CPF: user.User.CPF, Role: store.Role(), Errors: map[string]string{}})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store := session.FromContext(r.Context())
	current, ok := userOf(store)
	if !ok {
		httpx.Redirect(w, r, rbac.PathLogin)
		return
	}

	form := Form{
		Nome:           strings.TrimSpace(r.PostFormValue("nome")),
		Sobrenome:      strings.TrimSpace(r.PostFormValue("sobrenome")),
		DataNascimento: strings.TrimSpace(r.PostFormValue("dthr_nascimento")),
		Endereco:       strings.TrimSpace(r.PostFormValue("endereco")),
		Email:          strings.TrimSpace(r.PostFormValue("email")),
		Senha:          r.PostFormValue("senha"),
		Confirmacao:    r.PostFormValue("senha_confirmacao"),
	}
	data := PageData{Form: form, CPF: current.User.CPF, Role: store.Role()}
	data.Form.Senha, data.Form.Confirmacao = "", ""

	data.Errors = httpx.FieldErrors(h.validator.Struct(form))
	if len(data.Errors) > 0 {
		h.render(w, r, http.StatusBadRequest, data)
		return
	}

	update := Changes(formFrom(current), form)
	if update == (api.ProfileUpdate{}) {
		httpx.Succeed(w, r, "Nenhuma alteração", rbac.PathProfile)
		return
	}

	claim, err := h.guard.Claim(r, moduleProfile)
	if err != nil {
		httpx.Fail(w, r, h.logger, err, rbac.PathProfile)
		return
	}
	if err := store.UpdateUser(r.Context(), update); err != nil {
		claim.Release(r.Context())
		if httpx.StatusFor(err) == http.StatusUnauthorized {
			httpx.Fail(w, r, h.logger, err, rbac.PathLogin)
			return
		}
		httpx.Log(r, h.logger, err)
		data.Errors["general"] = httpx.UserMessage(err)
		h.render(w, r, httpx.StatusFor(err), data)
		return
	}
	httpx.Succeed(w, r, "Perfil atualizado", rbac.PathProfile)
}

// Changes builds the PATCH payload holding only fields that differ from
// before. The password is sent only when one was typed.
func Changes(before, after Form) api.ProfileUpdate {
	var update api.ProfileUpdate
	changed := func(old, next string) *string {
		if old == next {
			return nil
		}
		return &next
	}
	update.Nome = changed(before.Nome, after.Nome)
	update.Sobrenome = changed(before.Sobrenome, after.Sobrenome)
	update.DataNascimento = changed(before.DataNascimento, after.DataNascimento)
	update.Endereco = changed(before.Endereco, after.Endereco)
	update.Email = changed(before.Email, after.Email)
	update.Senha = after.Senha
	return update
}

func userOf(store *session.Store) (api.Profile, bool) {
	if store == nil || !store.Authenticated() {
		return api.Profile{}, false
	}
	return store.User()
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	h.templates.Page(w, h.logger, status, "pages/profile.html", view.NewTemplateData(r, h.csrf, "Perfil", data))
}
