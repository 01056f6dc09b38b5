// Package auth serves the login, registration and logout pages.
package auth

import (
	"errors"
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

const msgBadCredentials = "E-mail ou senha inválidos"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(rbac.PathLogin, h.showLogin)
	r.Post(rbac.PathLogin, h.handleLogin)
	r.Get(rbac.PathRegister, h.showRegister)
	r.Post(rbac.PathRegister, h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email string `form:"email" validate:"required,email"`
	Senha string `form:"senha" validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type registerForm struct {
	Nome           string `form:"nome" validate:"required,max=100"`
	Sobrenome      string `form:"sobrenome" validate:"required,max=100"`
	CPF            string `form:"cpf" validate:"required,numeric,len=11"`
	DataNascimento string `form:"dthr_nascimento" validate:"required,datetime=2006-01-02"`
	Endereco       string `form:"endereco" validate:"max=255"`
	Email          string `form:"email" validate:"required,email"`
	Senha          string `form:"senha" validate:"required,min=6"`
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.templates.Page(w, h.logger, http.StatusOK, "pages/login.html",
		view.NewTemplateData(r, h.csrfManager, "Entrar", loginPageData{Errors: map[string]string{}}))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store := session.FromContext(r.Context())
	if store == nil {
		h.logger.Error("session store missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email: strings.TrimSpace(r.PostFormValue("email")),
		Senha: r.PostFormValue("senha"),
	}
	errs := httpx.FieldErrors(h.validator.Struct(form))
	status := http.StatusBadRequest
	if len(errs) == 0 {
		id, err := store.Login(r.Context(), form.Email, form.Senha)
		if err == nil {
			shared.AddFlash(r.Context(), shared.FlashSuccess, "Bem-vindo, "+id.User.User.Nome)
			httpx.Redirect(w, r, rbac.Home(id.Role))
			return
		}
		status = loginFailure(err, errs)
		httpx.Log(r, h.logger, err)
	}

	form.Senha = ""
	h.templates.Page(w, h.logger, status, "pages/login.html",
		view.NewTemplateData(r, h.csrfManager, "Entrar", loginPageData{Form: form, Errors: errs}))
}

// loginFailure fills errs for a failed login and returns the status to render
// with. A rejection by the API keeps its message and status.
func loginFailure(err error, errs map[string]string) int {
	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrValidation):
		errs["general"] = api.Message(err, msgBadCredentials)
		if errors.As(err, &apiErr) {
			return apiErr.Status
		}
		return http.StatusUnauthorized
	default:
		errs["general"] = httpx.UserMessage(err)
		return httpx.StatusFor(err)
	}
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.templates.Page(w, h.logger, http.StatusOK, "pages/register.html",
		view.NewTemplateData(r, h.csrfManager, "Criar conta", registerPageData{Errors: map[string]string{}}))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store := session.FromContext(r.Context())
	if store == nil {
		h.logger.Error("session store missing during register")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := registerForm{
		Nome:           strings.TrimSpace(r.PostFormValue("nome")),
		Sobrenome:      strings.TrimSpace(r.PostFormValue("sobrenome")),
		CPF:            digits(r.PostFormValue("cpf")),
		DataNascimento: strings.TrimSpace(r.PostFormValue("dthr_nascimento")),
		Endereco:       strings.TrimSpace(r.PostFormValue("endereco")),
		Email:          strings.TrimSpace(r.PostFormValue("email")),
		Senha:          r.PostFormValue("senha"),
	}
	errs := httpx.FieldErrors(h.validator.Struct(form))
	status := http.StatusBadRequest
	if len(errs) == 0 {
		id, err := store.Register(r.Context(), api.RegisterRequest{
			Nome:           form.Nome,
			Sobrenome:      form.Sobrenome,
			CPF:            form.CPF,
			DataNascimento: form.DataNascimento,
			Endereco:       form.Endereco,
			Email:          form.Email,
			Senha:          form.Senha,
		})
		if err == nil {
			shared.AddFlash(r.Context(), shared.FlashSuccess, "Conta criada. Bem-vindo, "+id.User.User.Nome)
			httpx.Redirect(w, r, rbac.Home(id.Role))
			return
		}
		httpx.Log(r, h.logger, err)
		errs["general"] = httpx.UserMessage(err)
		status = httpx.StatusFor(err)
	}

	form.Senha = ""
	h.templates.Page(w, h.logger, status, "pages/register.html",
		view.NewTemplateData(r, h.csrfManager, "Criar conta", registerPageData{Form: form, Errors: errs}))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if store := session.FromContext(r.Context()); store != nil {
		store.Logout()
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && h.sessionManager != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.Redirect(w, r, rbac.PathLogin)
}

func digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
